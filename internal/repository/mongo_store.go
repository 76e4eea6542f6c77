package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"MarketPulse/internal/domain/models"
	drepo "MarketPulse/internal/domain/repository"
	"MarketPulse/pkg/mongodb"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names shared with the community service that owns the writes.
const (
	CollSentimentVotes = "sentimentvotes"
	CollTradeVotes     = "tradevotes"
	CollComments       = "comments"
	CollNews           = "news"
	CollAnalyses       = "ai_analyses"
	CollQuotes         = "market_quotes"
)

type countRow struct {
	Key   string `bson:"_id"`
	Count int    `bson:"count"`
}

type commentDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Asset     string             `bson:"asset"`
	Text      string             `bson:"text"`
	UserID    string             `bson:"userId,omitempty"`
	GuestID   string             `bson:"guestId,omitempty"`
	CreatedAt time.Time          `bson:"createdAt"`
}

func (d commentDoc) toModel() models.Comment {
	c := models.Comment{Asset: models.NormalizeAsset(d.Asset), Text: strings.TrimSpace(d.Text), CreatedAt: d.CreatedAt}
	switch {
	case d.UserID != "":
		c.Author = models.RegisteredActor(d.UserID)
	case d.GuestID != "":
		c.Author = models.GuestActor(d.GuestID)
	}
	return c
}

type newsDoc struct {
	Asset       string    `bson:"asset"`
	Title       string    `bson:"title"`
	PublishedAt time.Time `bson:"publishedAt"`
}

type summaryDoc struct {
	models.IntelligenceSummary `bson:",inline"`
	UpdatedAt                  time.Time `bson:"updatedAt"`
}

type quoteDoc struct {
	models.MarketQuote `bson:",inline"`
	UpdatedAt          time.Time `bson:"updatedAt"`
}

// MongoStore reads community data and keeps the latest summaries and
// quotes as durable snapshots.
type MongoStore struct {
	db      *mongo.Database
	timeout time.Duration
	now     func() time.Time
}

func NewMongoStore(client *mongodb.Client, queryTimeout time.Duration) *MongoStore {
	if queryTimeout <= 0 {
		queryTimeout = 5 * time.Second
	}
	return &MongoStore{db: client.Database(), timeout: queryTimeout, now: time.Now}
}

// assetCollation matches asset codes case-insensitively. Community documents
// keep whatever case the client sent, so every asset lookup and the indexes
// serving it share this collation.
var assetCollation = &options.Collation{Locale: "en", Strength: 2}

func assetTimeIndex(timeField string) mongo.IndexModel {
	return mongo.IndexModel{
		Keys:    bson.D{{Key: "asset", Value: 1}, {Key: timeField, Value: -1}},
		Options: options.Index().SetName("asset_ci_" + timeField).SetCollation(assetCollation),
	}
}

func indexSpecs() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		CollSentimentVotes: {assetTimeIndex("createdAt")},
		CollTradeVotes:     {assetTimeIndex("createdAt")},
		CollComments:       {assetTimeIndex("createdAt")},
		CollNews:           {assetTimeIndex("publishedAt")},
		CollAnalyses:       {{Keys: bson.D{{Key: "asset", Value: 1}}, Options: options.Index().SetUnique(true)}},
		CollQuotes:         {{Keys: bson.D{{Key: "symbol", Value: 1}}, Options: options.Index().SetUnique(true)}},
	}
}

// EnsureIndexes creates the lookup indexes used by the read paths.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	for coll, idx := range indexSpecs() {
		if _, err := s.db.Collection(coll).Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("create indexes %s: %w", coll, err)
		}
	}
	return nil
}

func (s *MongoStore) ReadRecentSentiment(ctx context.Context, asset string, window time.Duration) (models.SentimentTally, error) {
	rows, err := s.countBy(ctx, CollSentimentVotes, "vote", asset, window)
	if err != nil {
		return models.SentimentTally{}, fmt.Errorf("read sentiment %s: %w", asset, err)
	}
	return foldSentiment(rows), nil
}

func (s *MongoStore) ReadRecentIntents(ctx context.Context, asset string, window time.Duration) (models.IntentTally, error) {
	rows, err := s.countBy(ctx, CollTradeVotes, "intent", asset, window)
	if err != nil {
		return models.IntentTally{}, fmt.Errorf("read intents %s: %w", asset, err)
	}
	return foldIntents(rows), nil
}

func (s *MongoStore) countBy(ctx context.Context, coll, field, asset string, window time.Duration) ([]countRow, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{
			{Key: "asset", Value: assetFilter(asset)},
			{Key: "createdAt", Value: bson.D{{Key: "$gte", Value: s.now().Add(-window)}}},
		}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{{Key: "$toLower", Value: "$" + field}}},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}
	cur, err := s.db.Collection(coll).Aggregate(ctx, pipeline, options.Aggregate().SetCollation(assetCollation))
	if err != nil {
		return nil, err
	}
	var rows []countRow
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *MongoStore) ReadRecentComments(ctx context.Context, asset string, window time.Duration, limit int) ([]models.Comment, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	filter := bson.D{
		{Key: "asset", Value: assetFilter(asset)},
		{Key: "createdAt", Value: bson.D{{Key: "$gte", Value: s.now().Add(-window)}}},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(int64(limit)).
		SetCollation(assetCollation)
	cur, err := s.db.Collection(CollComments).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("read comments %s: %w", asset, err)
	}
	var docs []commentDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode comments %s: %w", asset, err)
	}
	out := make([]models.Comment, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toModel())
	}
	return out, nil
}

func (s *MongoStore) ReadRecentHeadlines(ctx context.Context, asset string, limit int) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "publishedAt", Value: -1}}).
		SetLimit(int64(limit)).
		SetCollation(assetCollation)
	cur, err := s.db.Collection(CollNews).Find(ctx, bson.D{{Key: "asset", Value: assetFilter(asset)}}, opts)
	if err != nil {
		return nil, fmt.Errorf("read news %s: %w", asset, err)
	}
	var docs []newsDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode news %s: %w", asset, err)
	}
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		if t := strings.TrimSpace(d.Title); t != "" {
			out = append(out, t)
		}
	}
	return out, nil
}

// UpsertSummary replaces the snapshot for the asset. Concurrent writers are
// last-writer-wins on the unique asset index.
func (s *MongoStore) UpsertSummary(ctx context.Context, sum models.IntelligenceSummary) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	doc := summaryDoc{IntelligenceSummary: sum, UpdatedAt: s.now()}
	_, err := s.db.Collection(CollAnalyses).ReplaceOne(ctx, bson.D{{Key: "asset", Value: sum.Asset}}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert summary %s: %w", sum.Asset, err)
	}
	return nil
}

func (s *MongoStore) LoadSummaries(ctx context.Context) ([]models.IntelligenceSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	cur, err := s.db.Collection(CollAnalyses).Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("load summaries: %w", err)
	}
	var docs []summaryDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode summaries: %w", err)
	}
	out := make([]models.IntelligenceSummary, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.IntelligenceSummary)
	}
	return out, nil
}

func (s *MongoStore) UpsertQuote(ctx context.Context, q models.MarketQuote) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	doc := quoteDoc{MarketQuote: q, UpdatedAt: s.now()}
	_, err := s.db.Collection(CollQuotes).ReplaceOne(ctx, bson.D{{Key: "symbol", Value: q.Symbol}}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert quote %s: %w", q.Symbol, err)
	}
	return nil
}

func (s *MongoStore) LoadQuotes(ctx context.Context) ([]models.MarketQuote, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	cur, err := s.db.Collection(CollQuotes).Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("load quotes: %w", err)
	}
	var docs []quoteDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode quotes: %w", err)
	}
	out := make([]models.MarketQuote, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.MarketQuote)
	}
	return out, nil
}

// assetFilter is an equality match; case folding comes from assetCollation.
func assetFilter(asset string) string {
	return models.NormalizeAsset(asset)
}

func foldSentiment(rows []countRow) models.SentimentTally {
	var t models.SentimentTally
	for _, r := range rows {
		switch r.Key {
		case "bullish", "bull", "up":
			t.Bullish += r.Count
		case "bearish", "bear", "down":
			t.Bearish += r.Count
		}
	}
	return t
}

func foldIntents(rows []countRow) models.IntentTally {
	var t models.IntentTally
	for _, r := range rows {
		switch r.Key {
		case "buy":
			t.Buy += r.Count
		case "sell":
			t.Sell += r.Count
		case "hold":
			t.Hold += r.Count
		}
	}
	return t
}

var (
	_ drepo.VoteReader    = (*MongoStore)(nil)
	_ drepo.CommentReader = (*MongoStore)(nil)
	_ drepo.NewsReader    = (*MongoStore)(nil)
	_ drepo.SnapshotStore = (*MongoStore)(nil)
)
