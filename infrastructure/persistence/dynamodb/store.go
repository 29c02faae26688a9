// Package dynamodb implements the hierarchy store on a single DynamoDB
// table. Items are partitioned per user (PK USER#<id>) with a typed sort key
// (DOT#, WHEEL#, CHAKRA#) so one Query covers any listing.
package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/teamthinqers/thinkersweb-backend-sub006/application/ports"
	"github.com/teamthinqers/thinkersweb-backend-sub006/domain/grid"
	pkgerrors "github.com/teamthinqers/thinkersweb-backend-sub006/pkg/errors"
)

const (
	dotPrefix    = "DOT#"
	wheelPrefix  = "WHEEL#"
	chakraPrefix = "CHAKRA#"
)

// ddbDot is the storage shape of a dot item.
type ddbDot struct {
	PK             string   `dynamodbav:"PK"`
	SK             string   `dynamodbav:"SK"`
	ID             string   `dynamodbav:"ID"`
	UserID         string   `dynamodbav:"UserID"`
	OneWordSummary string   `dynamodbav:"OneWordSummary"`
	Summary        string   `dynamodbav:"Summary"`
	Anchor         string   `dynamodbav:"Anchor"`
	Pulse          string   `dynamodbav:"Pulse"`
	SourceType     string   `dynamodbav:"SourceType"`
	CaptureMode    string   `dynamodbav:"CaptureMode"`
	WheelID        *string  `dynamodbav:"WheelID,omitempty"`
	ChakraID       *string  `dynamodbav:"ChakraID,omitempty"`
	PositionX      *float64 `dynamodbav:"PositionX,omitempty"`
	PositionY      *float64 `dynamodbav:"PositionY,omitempty"`
	CreatedAt      string   `dynamodbav:"CreatedAt"`
	UpdatedAt      string   `dynamodbav:"UpdatedAt"`
}

// ddbWheel is the storage shape of a wheel item.
type ddbWheel struct {
	PK         string   `dynamodbav:"PK"`
	SK         string   `dynamodbav:"SK"`
	ID         string   `dynamodbav:"ID"`
	UserID     string   `dynamodbav:"UserID"`
	Heading    string   `dynamodbav:"Heading"`
	Goals      string   `dynamodbav:"Goals"`
	Timeline   string   `dynamodbav:"Timeline"`
	Category   string   `dynamodbav:"Category"`
	Color      string   `dynamodbav:"Color"`
	SourceType string   `dynamodbav:"SourceType"`
	ChakraID   *string  `dynamodbav:"ChakraID,omitempty"`
	PositionX  *float64 `dynamodbav:"PositionX,omitempty"`
	PositionY  *float64 `dynamodbav:"PositionY,omitempty"`
	Radius     float64  `dynamodbav:"Radius"`
	CreatedAt  string   `dynamodbav:"CreatedAt"`
	UpdatedAt  string   `dynamodbav:"UpdatedAt"`
}

// ddbChakra is the storage shape of a chakra item.
type ddbChakra struct {
	PK         string   `dynamodbav:"PK"`
	SK         string   `dynamodbav:"SK"`
	ID         string   `dynamodbav:"ID"`
	UserID     string   `dynamodbav:"UserID"`
	Heading    string   `dynamodbav:"Heading"`
	Purpose    string   `dynamodbav:"Purpose"`
	Timeline   string   `dynamodbav:"Timeline"`
	Color      string   `dynamodbav:"Color"`
	SourceType string   `dynamodbav:"SourceType"`
	PositionX  *float64 `dynamodbav:"PositionX,omitempty"`
	PositionY  *float64 `dynamodbav:"PositionY,omitempty"`
	Radius     float64  `dynamodbav:"Radius"`
	CreatedAt  string   `dynamodbav:"CreatedAt"`
	UpdatedAt  string   `dynamodbav:"UpdatedAt"`
}

// Store implements ports.HierarchyStore on DynamoDB. Every table call runs
// through a circuit breaker so a struggling table sheds load fast instead of
// piling up timeouts.
type Store struct {
	client    *dynamodb.Client
	tableName string
	breaker   *gobreaker.CircuitBreaker
	logger    *zap.Logger
}

// NewStore creates a DynamoDB-backed hierarchy store.
func NewStore(client *dynamodb.Client, tableName string, logger *zap.Logger) *Store {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "dynamodb",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return &Store{
		client:    client,
		tableName: tableName,
		breaker:   breaker,
		logger:    logger,
	}
}

func userPK(userID string) string { return "USER#" + userID }

// GetDot retrieves a dot owned by the user.
func (s *Store) GetDot(ctx context.Context, userID, dotID string) (*grid.Dot, error) {
	item, err := s.getItem(ctx, userID, dotPrefix+dotID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, pkgerrors.NewNotFound(fmt.Sprintf("dot not found: %s", dotID))
	}
	var rec ddbDot
	if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to unmarshal dot item")
	}
	return rec.toDomain(), nil
}

// GetWheel retrieves a wheel owned by the user.
func (s *Store) GetWheel(ctx context.Context, userID, wheelID string) (*grid.Wheel, error) {
	item, err := s.getItem(ctx, userID, wheelPrefix+wheelID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, pkgerrors.NewNotFound(fmt.Sprintf("wheel not found: %s", wheelID))
	}
	var rec ddbWheel
	if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to unmarshal wheel item")
	}
	return rec.toDomain(), nil
}

// GetChakra retrieves a chakra owned by the user.
func (s *Store) GetChakra(ctx context.Context, userID, chakraID string) (*grid.Chakra, error) {
	item, err := s.getItem(ctx, userID, chakraPrefix+chakraID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, pkgerrors.NewNotFound(fmt.Sprintf("chakra not found: %s", chakraID))
	}
	var rec ddbChakra
	if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to unmarshal chakra item")
	}
	return rec.toDomain(), nil
}

// SaveDot writes the dot item.
func (s *Store) SaveDot(ctx context.Context, dot *grid.Dot) error {
	return s.putItem(ctx, dotFromDomain(dot))
}

// SaveWheel writes the wheel item.
func (s *Store) SaveWheel(ctx context.Context, wheel *grid.Wheel) error {
	return s.putItem(ctx, wheelFromDomain(wheel))
}

// SaveChakra writes the chakra item.
func (s *Store) SaveChakra(ctx context.Context, chakra *grid.Chakra) error {
	return s.putItem(ctx, chakraFromDomain(chakra))
}

// ListDots lists the user's dots newest-first, applying the filter.
func (s *Store) ListDots(ctx context.Context, userID string, filter ports.DotFilter) ([]*grid.Dot, error) {
	items, err := s.queryPrefix(ctx, userID, dotPrefix)
	if err != nil {
		return nil, err
	}

	dots := make([]*grid.Dot, 0, len(items))
	for _, item := range items {
		var rec ddbDot
		if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
			s.logger.Warn("Skipping unreadable dot item", zap.Error(err))
			continue
		}
		d := rec.toDomain()
		if !matchDot(d, filter) {
			continue
		}
		dots = append(dots, d)
	}

	sort.Slice(dots, func(i, j int) bool {
		if !dots[i].CreatedAt.Equal(dots[j].CreatedAt) {
			return dots[i].CreatedAt.After(dots[j].CreatedAt)
		}
		return dots[i].ID > dots[j].ID
	})
	return pageSlice(dots, filter.Offset, filter.Limit), nil
}

// ListWheels lists the user's wheels newest-first, applying the filter and
// hydrating child dots on request.
func (s *Store) ListWheels(ctx context.Context, userID string, filter ports.WheelFilter) ([]*grid.Wheel, error) {
	items, err := s.queryPrefix(ctx, userID, wheelPrefix)
	if err != nil {
		return nil, err
	}

	wheels := make([]*grid.Wheel, 0, len(items))
	for _, item := range items {
		var rec ddbWheel
		if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
			s.logger.Warn("Skipping unreadable wheel item", zap.Error(err))
			continue
		}
		w := rec.toDomain()
		if filter.Unlinked && w.ChakraID != nil {
			continue
		}
		if filter.ChakraID != nil && (w.ChakraID == nil || *w.ChakraID != *filter.ChakraID) {
			continue
		}
		wheels = append(wheels, w)
	}

	sort.Slice(wheels, func(i, j int) bool {
		if !wheels[i].CreatedAt.Equal(wheels[j].CreatedAt) {
			return wheels[i].CreatedAt.After(wheels[j].CreatedAt)
		}
		return wheels[i].ID > wheels[j].ID
	})
	wheels = pageSlice(wheels, filter.Offset, filter.Limit)

	if filter.IncludeDots && len(wheels) > 0 {
		dots, err := s.ListDots(ctx, userID, ports.DotFilter{})
		if err != nil {
			return nil, err
		}
		byWheel := make(map[string][]*grid.Dot)
		for _, d := range dots {
			if d.WheelID != nil {
				byWheel[*d.WheelID] = append(byWheel[*d.WheelID], d)
			}
		}
		for _, w := range wheels {
			w.Dots = byWheel[w.ID]
		}
	}
	return wheels, nil
}

// ListChakras lists the user's chakras newest-first, hydrating child wheels
// and dots on request.
func (s *Store) ListChakras(ctx context.Context, userID string, filter ports.ChakraFilter) ([]*grid.Chakra, error) {
	items, err := s.queryPrefix(ctx, userID, chakraPrefix)
	if err != nil {
		return nil, err
	}

	chakras := make([]*grid.Chakra, 0, len(items))
	for _, item := range items {
		var rec ddbChakra
		if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
			s.logger.Warn("Skipping unreadable chakra item", zap.Error(err))
			continue
		}
		chakras = append(chakras, rec.toDomain())
	}

	sort.Slice(chakras, func(i, j int) bool {
		if !chakras[i].CreatedAt.Equal(chakras[j].CreatedAt) {
			return chakras[i].CreatedAt.After(chakras[j].CreatedAt)
		}
		return chakras[i].ID > chakras[j].ID
	})
	chakras = pageSlice(chakras, filter.Offset, filter.Limit)

	if (filter.IncludeWheels || filter.IncludeDots) && len(chakras) > 0 {
		wheels, err := s.ListWheels(ctx, userID, ports.WheelFilter{IncludeDots: filter.IncludeDots})
		if err != nil {
			return nil, err
		}
		byChakra := make(map[string][]*grid.Wheel)
		for _, w := range wheels {
			if w.ChakraID != nil {
				byChakra[*w.ChakraID] = append(byChakra[*w.ChakraID], w)
			}
		}
		var directDots map[string][]*grid.Dot
		if filter.IncludeDots {
			dots, err := s.ListDots(ctx, userID, ports.DotFilter{})
			if err != nil {
				return nil, err
			}
			directDots = make(map[string][]*grid.Dot)
			for _, d := range dots {
				if d.ChakraID != nil {
					directDots[*d.ChakraID] = append(directDots[*d.ChakraID], d)
				}
			}
		}
		for _, c := range chakras {
			if filter.IncludeWheels || filter.IncludeDots {
				c.Wheels = byChakra[c.ID]
			}
			if filter.IncludeDots {
				c.Dots = directDots[c.ID]
			}
		}
	}
	return chakras, nil
}

// SavePositions applies the whole batch in one TransactWriteItems call. Each
// update carries an existence condition, so a missing or foreign element
// cancels the transaction and nothing is written.
func (s *Store) SavePositions(ctx context.Context, userID string, updates []ports.PositionUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	if len(updates) > 25 {
		return pkgerrors.NewValidation("position batch exceeds the transactional write limit of 25")
	}

	now := time.Now().UTC().Format(time.RFC3339)
	transactItems := make([]types.TransactWriteItem, 0, len(updates))
	for _, u := range updates {
		sk, err := sortKey(u.ElementType, u.ElementID)
		if err != nil {
			return err
		}
		update := expression.
			Set(expression.Name("PositionX"), expression.Value(u.Position.X)).
			Set(expression.Name("PositionY"), expression.Value(u.Position.Y)).
			Set(expression.Name("UpdatedAt"), expression.Value(now))
		expr, err := expression.NewBuilder().
			WithUpdate(update).
			WithCondition(expression.AttributeExists(expression.Name("PK"))).
			Build()
		if err != nil {
			return pkgerrors.Wrap(err, "failed to build position update expression")
		}
		transactItems = append(transactItems, types.TransactWriteItem{
			Update: &types.Update{
				TableName: aws.String(s.tableName),
				Key: map[string]types.AttributeValue{
					"PK": &types.AttributeValueMemberS{Value: userPK(userID)},
					"SK": &types.AttributeValueMemberS{Value: sk},
				},
				UpdateExpression:          expr.Update(),
				ConditionExpression:       expr.Condition(),
				ExpressionAttributeNames:  expr.Names(),
				ExpressionAttributeValues: expr.Values(),
			},
		})
	}

	_, err := s.breaker.Execute(func() (interface{}, error) {
		return s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
			TransactItems: transactItems,
		})
	})
	if err != nil {
		var canceled *types.TransactionCanceledException
		if errors.As(err, &canceled) {
			for i, reason := range canceled.CancellationReasons {
				if aws.ToString(reason.Code) == "ConditionalCheckFailed" && i < len(updates) {
					return pkgerrors.NewNotFound(fmt.Sprintf(
						"%s not found: %s", updates[i].ElementType, updates[i].ElementID))
				}
			}
		}
		return pkgerrors.Wrap(err, "position transaction failed")
	}
	return nil
}

func sortKey(t grid.ElementType, id string) (string, error) {
	switch t {
	case grid.ElementDot:
		return dotPrefix + id, nil
	case grid.ElementWheel:
		return wheelPrefix + id, nil
	case grid.ElementChakra:
		return chakraPrefix + id, nil
	}
	return "", pkgerrors.NewValidation(fmt.Sprintf("unknown element type: %s", t))
}

// wrapAWS logs the service error code when one is present and wraps the
// error as internal.
func (s *Store) wrapAWS(err error, msg string) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		s.logger.Error("DynamoDB call failed",
			zap.String("errorCode", apiErr.ErrorCode()),
			zap.String("errorMessage", apiErr.ErrorMessage()),
		)
	}
	return pkgerrors.Wrap(err, msg)
}

func (s *Store) getItem(ctx context.Context, userID, sk string) (map[string]types.AttributeValue, error) {
	result, err := s.breaker.Execute(func() (interface{}, error) {
		return s.client.GetItem(ctx, &dynamodb.GetItemInput{
			TableName: aws.String(s.tableName),
			Key: map[string]types.AttributeValue{
				"PK": &types.AttributeValueMemberS{Value: userPK(userID)},
				"SK": &types.AttributeValueMemberS{Value: sk},
			},
		})
	})
	if err != nil {
		return nil, s.wrapAWS(err, "failed to get item")
	}
	return result.(*dynamodb.GetItemOutput).Item, nil
}

func (s *Store) putItem(ctx context.Context, record interface{}) error {
	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to marshal item")
	}
	_, err = s.breaker.Execute(func() (interface{}, error) {
		return s.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: aws.String(s.tableName),
			Item:      item,
		})
	})
	if err != nil {
		return s.wrapAWS(err, "failed to put item")
	}
	return nil
}

func (s *Store) queryPrefix(ctx context.Context, userID, prefix string) ([]map[string]types.AttributeValue, error) {
	keyCond := expression.Key("PK").Equal(expression.Value(userPK(userID))).
		And(expression.Key("SK").BeginsWith(prefix))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to build query expression")
	}

	var items []map[string]types.AttributeValue
	var lastEvaluatedKey map[string]types.AttributeValue
	for {
		result, err := s.breaker.Execute(func() (interface{}, error) {
			return s.client.Query(ctx, &dynamodb.QueryInput{
				TableName:                 aws.String(s.tableName),
				KeyConditionExpression:    expr.KeyCondition(),
				ExpressionAttributeNames:  expr.Names(),
				ExpressionAttributeValues: expr.Values(),
				ExclusiveStartKey:         lastEvaluatedKey,
			})
		})
		if err != nil {
			return nil, s.wrapAWS(err, "failed to query items")
		}
		out := result.(*dynamodb.QueryOutput)
		items = append(items, out.Items...)
		lastEvaluatedKey = out.LastEvaluatedKey
		if lastEvaluatedKey == nil {
			break
		}
	}
	return items, nil
}

func matchDot(d *grid.Dot, filter ports.DotFilter) bool {
	if filter.Unlinked {
		return d.WheelID == nil && d.ChakraID == nil
	}
	if filter.WheelID != nil && (d.WheelID == nil || *d.WheelID != *filter.WheelID) {
		return false
	}
	if filter.ChakraID != nil && (d.ChakraID == nil || *d.ChakraID != *filter.ChakraID) {
		return false
	}
	return true
}

func pageSlice[T any](items []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func (r ddbDot) toDomain() *grid.Dot {
	createdAt, _ := time.Parse(time.RFC3339, r.CreatedAt)
	updatedAt, _ := time.Parse(time.RFC3339, r.UpdatedAt)
	return &grid.Dot{
		ID:             r.ID,
		UserID:         r.UserID,
		OneWordSummary: r.OneWordSummary,
		Summary:        r.Summary,
		Anchor:         r.Anchor,
		Pulse:          r.Pulse,
		SourceType:     r.SourceType,
		CaptureMode:    r.CaptureMode,
		WheelID:        r.WheelID,
		ChakraID:       r.ChakraID,
		PositionX:      r.PositionX,
		PositionY:      r.PositionY,
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
	}
}

func dotFromDomain(d *grid.Dot) ddbDot {
	return ddbDot{
		PK:             userPK(d.UserID),
		SK:             dotPrefix + d.ID,
		ID:             d.ID,
		UserID:         d.UserID,
		OneWordSummary: d.OneWordSummary,
		Summary:        d.Summary,
		Anchor:         d.Anchor,
		Pulse:          d.Pulse,
		SourceType:     d.SourceType,
		CaptureMode:    d.CaptureMode,
		WheelID:        d.WheelID,
		ChakraID:       d.ChakraID,
		PositionX:      d.PositionX,
		PositionY:      d.PositionY,
		CreatedAt:      d.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:      d.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func (r ddbWheel) toDomain() *grid.Wheel {
	createdAt, _ := time.Parse(time.RFC3339, r.CreatedAt)
	updatedAt, _ := time.Parse(time.RFC3339, r.UpdatedAt)
	return &grid.Wheel{
		ID:         r.ID,
		UserID:     r.UserID,
		Heading:    r.Heading,
		Goals:      r.Goals,
		Timeline:   r.Timeline,
		Category:   r.Category,
		Color:      r.Color,
		SourceType: r.SourceType,
		ChakraID:   r.ChakraID,
		PositionX:  r.PositionX,
		PositionY:  r.PositionY,
		Radius:     r.Radius,
		CreatedAt:  createdAt,
		UpdatedAt:  updatedAt,
	}
}

func wheelFromDomain(w *grid.Wheel) ddbWheel {
	return ddbWheel{
		PK:         userPK(w.UserID),
		SK:         wheelPrefix + w.ID,
		ID:         w.ID,
		UserID:     w.UserID,
		Heading:    w.Heading,
		Goals:      w.Goals,
		Timeline:   w.Timeline,
		Category:   w.Category,
		Color:      w.Color,
		SourceType: w.SourceType,
		ChakraID:   w.ChakraID,
		PositionX:  w.PositionX,
		PositionY:  w.PositionY,
		Radius:     w.Radius,
		CreatedAt:  w.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:  w.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func (r ddbChakra) toDomain() *grid.Chakra {
	createdAt, _ := time.Parse(time.RFC3339, r.CreatedAt)
	updatedAt, _ := time.Parse(time.RFC3339, r.UpdatedAt)
	return &grid.Chakra{
		ID:         r.ID,
		UserID:     r.UserID,
		Heading:    r.Heading,
		Purpose:    r.Purpose,
		Timeline:   r.Timeline,
		Color:      r.Color,
		SourceType: r.SourceType,
		PositionX:  r.PositionX,
		PositionY:  r.PositionY,
		Radius:     r.Radius,
		CreatedAt:  createdAt,
		UpdatedAt:  updatedAt,
	}
}

func chakraFromDomain(c *grid.Chakra) ddbChakra {
	return ddbChakra{
		PK:         userPK(c.UserID),
		SK:         chakraPrefix + c.ID,
		ID:         c.ID,
		UserID:     c.UserID,
		Heading:    c.Heading,
		Purpose:    c.Purpose,
		Timeline:   c.Timeline,
		Color:      c.Color,
		SourceType: c.SourceType,
		PositionX:  c.PositionX,
		PositionY:  c.PositionY,
		Radius:     c.Radius,
		CreatedAt:  c.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:  c.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
