package dynamodb

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/dwsmith1983/deploygate/internal/ledger"
	"github.com/dwsmith1983/deploygate/internal/lifecycle"
	"github.com/dwsmith1983/deploygate/pkg/types"
)

// runTTL returns the retention TTL for a run record. Pending records get a
// grace day so an in-flight run never expires under itself.
func (l *DynamoDBLedger) runTTL(outcome types.Outcome) time.Duration {
	if lifecycle.IsTerminal(outcome) {
		return l.retentionTTL
	}
	return l.retentionTTL + 24*time.Hour
}

// StartRun claims the deploy key and writes the pending record in one
// transaction: claim item (conditional), run truth item, and list copy.
// The claim condition is the compare-and-append point — a live or succeeded
// claim rejects the transaction and the second run short-circuits.
func (l *DynamoDBLedger) StartRun(ctx context.Context, run types.RunRecord) (bool, *types.RunRecord, error) {
	data, err := attributevalue.Marshal(run)
	if err != nil {
		return false, nil, fmt.Errorf("marshaling run record: %w", err)
	}
	ttl := fmt.Sprintf("%d", ttlEpoch(l.runTTL(run.Outcome)))

	_, err = l.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []ddbtypes.TransactWriteItem{
			{
				Put: &ddbtypes.Put{
					TableName: &l.tableName,
					Item: map[string]ddbtypes.AttributeValue{
						"PK":      &ddbtypes.AttributeValueMemberS{Value: claimPK(run.Event.DeployKey())},
						"SK":      &ddbtypes.AttributeValueMemberS{Value: skClaim},
						"runId":   &ddbtypes.AttributeValueMemberS{Value: run.RunID},
						"outcome": &ddbtypes.AttributeValueMemberS{Value: string(run.Outcome)},
						"ttl":     &ddbtypes.AttributeValueMemberN{Value: ttl},
					},
					ConditionExpression: aws.String("attribute_not_exists(PK) OR outcome = :failed OR outcome = :cancelled"),
					ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
						":failed":    &ddbtypes.AttributeValueMemberS{Value: string(types.OutcomeFailed)},
						":cancelled": &ddbtypes.AttributeValueMemberS{Value: string(types.OutcomeCancelled)},
					},
				},
			},
			{
				Put: &ddbtypes.Put{
					TableName: &l.tableName,
					Item: map[string]ddbtypes.AttributeValue{
						"PK":      &ddbtypes.AttributeValueMemberS{Value: runPK(run.RunID)},
						"SK":      &ddbtypes.AttributeValueMemberS{Value: runSK(run.RunID)},
						"data":    data,
						"outcome": &ddbtypes.AttributeValueMemberS{Value: string(run.Outcome)},
						"ttl":     &ddbtypes.AttributeValueMemberN{Value: ttl},
					},
				},
			},
			{
				Put: &ddbtypes.Put{
					TableName: &l.tableName,
					Item: map[string]ddbtypes.AttributeValue{
						"PK":   &ddbtypes.AttributeValueMemberS{Value: pkRunList},
						"SK":   &ddbtypes.AttributeValueMemberS{Value: runListSK(run.StartedAt, run.RunID)},
						"data": data,
						"ttl":  &ddbtypes.AttributeValueMemberN{Value: ttl},
					},
				},
			},
		},
	})
	if err != nil {
		if isTransactConditionFailed(err) {
			existing, ferr := l.FindByDeployKey(ctx, run.Event.SourceRef, run.Event.CommitSHA)
			if ferr != nil {
				return false, nil, fmt.Errorf("deploy key %q is claimed but the holder is unreadable: %w", run.Event.DeployKey(), ferr)
			}
			return false, existing, nil
		}
		return false, nil, err
	}
	return true, nil, nil
}

// FinishRun applies a terminal outcome with a pending-only conditional
// update. A lost race re-reads the record and resolves idempotently.
func (l *DynamoDBLedger) FinishRun(ctx context.Context, runID string, c ledger.Completion) error {
	rec, err := l.GetRun(ctx, runID)
	if err != nil {
		return err
	}

	if lifecycle.IsTerminal(rec.Outcome) {
		if c.Matches(rec) {
			return nil
		}
		return ledger.ErrFinishConflict
	}
	if err := lifecycle.Transition(rec.Outcome, c.Outcome); err != nil {
		return err
	}

	now := time.Now()
	updated := *rec
	updated.Outcome = c.Outcome
	updated.ExitCode = c.ExitCode
	updated.FailureKind = c.FailureKind
	updated.FailureMessage = c.FailureMessage
	updated.FinishedAt = &now
	updated.UpdatedAt = now

	data, err := attributevalue.Marshal(updated)
	if err != nil {
		return fmt.Errorf("marshaling run record: %w", err)
	}
	ttl := fmt.Sprintf("%d", ttlEpoch(l.runTTL(updated.Outcome)))

	_, err = l.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: &l.tableName,
		Key: map[string]ddbtypes.AttributeValue{
			"PK": &ddbtypes.AttributeValueMemberS{Value: runPK(runID)},
			"SK": &ddbtypes.AttributeValueMemberS{Value: runSK(runID)},
		},
		UpdateExpression:    aws.String("SET #data = :data, #outcome = :outcome, #ttl = :ttl"),
		ConditionExpression: aws.String("#outcome = :pending"),
		ExpressionAttributeNames: map[string]string{
			"#data":    "data",
			"#outcome": "outcome",
			"#ttl":     "ttl",
		},
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":data":    data,
			":outcome": &ddbtypes.AttributeValueMemberS{Value: string(updated.Outcome)},
			":pending": &ddbtypes.AttributeValueMemberS{Value: string(types.OutcomePending)},
			":ttl":     &ddbtypes.AttributeValueMemberN{Value: ttl},
		},
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			// Lost the race to another finisher; resolve idempotently.
			latest, gerr := l.GetRun(ctx, runID)
			if gerr != nil {
				return gerr
			}
			if c.Matches(latest) {
				return nil
			}
			return ledger.ErrFinishConflict
		}
		return err
	}

	// Best-effort updates of the claim outcome and the list copy.
	_, _ = l.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: &l.tableName,
		Key: map[string]ddbtypes.AttributeValue{
			"PK": &ddbtypes.AttributeValueMemberS{Value: claimPK(updated.Event.DeployKey())},
			"SK": &ddbtypes.AttributeValueMemberS{Value: skClaim},
		},
		UpdateExpression:    aws.String("SET #outcome = :outcome"),
		ConditionExpression: aws.String("runId = :rid"),
		ExpressionAttributeNames: map[string]string{
			"#outcome": "outcome",
		},
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":outcome": &ddbtypes.AttributeValueMemberS{Value: string(updated.Outcome)},
			":rid":     &ddbtypes.AttributeValueMemberS{Value: runID},
		},
	})
	_, _ = l.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &l.tableName,
		Item: map[string]ddbtypes.AttributeValue{
			"PK":   &ddbtypes.AttributeValueMemberS{Value: pkRunList},
			"SK":   &ddbtypes.AttributeValueMemberS{Value: runListSK(updated.StartedAt, runID)},
			"data": data,
			"ttl":  &ddbtypes.AttributeValueMemberN{Value: ttl},
		},
	})

	return nil
}

// GetRun retrieves a run record from the truth item (strongly consistent).
func (l *DynamoDBLedger) GetRun(ctx context.Context, runID string) (*types.RunRecord, error) {
	out, err := l.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      &l.tableName,
		ConsistentRead: aws.Bool(true),
		Key: map[string]ddbtypes.AttributeValue{
			"PK": &ddbtypes.AttributeValueMemberS{Value: runPK(runID)},
			"SK": &ddbtypes.AttributeValueMemberS{Value: runSK(runID)},
		},
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, ledger.ErrRunNotFound
	}

	if expired(out.Item) {
		return nil, ledger.ErrRunNotFound
	}
	return unmarshalRun(out.Item)
}

// ListRuns returns recent runs, newest first.
func (l *DynamoDBLedger) ListRuns(ctx context.Context, limit int) ([]types.RunRecord, error) {
	if limit <= 0 {
		limit = 10
	}

	out, err := l.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              &l.tableName,
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":pk":     &ddbtypes.AttributeValueMemberS{Value: pkRunList},
			":prefix": &ddbtypes.AttributeValueMemberS{Value: prefixRun},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, err
	}

	var runs []types.RunRecord
	for _, item := range out.Items {
		if expired(item) {
			continue
		}
		run, err := unmarshalRun(item)
		if err != nil {
			l.logger.Warn("skipping corrupt run data", "error", err)
			continue
		}
		runs = append(runs, *run)
	}
	return runs, nil
}

// FindByDeployKey resolves the claim item, then reads the holding run.
func (l *DynamoDBLedger) FindByDeployKey(ctx context.Context, sourceRef, commitSHA string) (*types.RunRecord, error) {
	key := types.EventDescriptor{SourceRef: sourceRef, CommitSHA: commitSHA}.DeployKey()
	out, err := l.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      &l.tableName,
		ConsistentRead: aws.Bool(true),
		Key: map[string]ddbtypes.AttributeValue{
			"PK": &ddbtypes.AttributeValueMemberS{Value: claimPK(key)},
			"SK": &ddbtypes.AttributeValueMemberS{Value: skClaim},
		},
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil || expired(out.Item) {
		return nil, ledger.ErrRunNotFound
	}

	runIDAttr, ok := out.Item["runId"].(*ddbtypes.AttributeValueMemberS)
	if !ok {
		return nil, fmt.Errorf("claim item for %q has no run id", key)
	}
	return l.GetRun(ctx, runIDAttr.Value)
}

func unmarshalRun(item map[string]ddbtypes.AttributeValue) (*types.RunRecord, error) {
	data, ok := item["data"]
	if !ok {
		return nil, fmt.Errorf("item has no data attribute")
	}
	var run types.RunRecord
	if err := attributevalue.Unmarshal(data, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

func expired(item map[string]ddbtypes.AttributeValue) bool {
	attr, ok := item["ttl"].(*ddbtypes.AttributeValueMemberN)
	if !ok {
		return false
	}
	var epoch int64
	if _, err := fmt.Sscanf(attr.Value, "%d", &epoch); err != nil {
		return false
	}
	return isExpired(epoch)
}
