package repository

import (
	"context"
	"errors"
	"sort"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/bulletin/pkg/model"
	"github.com/m-mizutani/bulletin/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	collectionUpdates = "updates"

	// defaultScanWindow is how many recent documents a keyword query inspects.
	// Firestore has no substring operator, so keyword matching happens here.
	// It also bounds a date query when the composite index is missing.
	defaultScanWindow = 200
)

// Firestore implements Repository using Cloud Firestore
type Firestore struct {
	client     *firestore.Client
	scanWindow int
}

var _ Repository = (*Firestore)(nil)

type FirestoreOption func(*Firestore)

// WithScanWindow sets how many recent documents keyword queries scan. Without
// the (date, created_at DESC) composite index, a date query reads at most this
// many documents of the day, in no particular order, before sorting them.
func WithScanWindow(n int) FirestoreOption {
	return func(f *Firestore) {
		f.scanWindow = n
	}
}

// NewFirestore creates a new Firestore repository
func NewFirestore(ctx context.Context, projectID, databaseID string, opts ...FirestoreOption) (*Firestore, error) {
	if projectID == "" {
		return nil, goerr.New("project ID is required")
	}
	if databaseID == "" {
		databaseID = firestore.DefaultDatabaseID
	}

	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project", projectID),
			goerr.V("database", databaseID))
	}

	f := &Firestore{
		client:     client,
		scanWindow: defaultScanWindow,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Close closes the underlying client
func (r *Firestore) Close() error {
	return r.client.Close()
}

func (r *Firestore) PutUpdate(ctx context.Context, update *model.Update) error {
	doc := *update
	doc.Date = model.NormalizeDate(doc.Date)

	if _, err := r.client.Collection(collectionUpdates).Doc(string(update.ID)).Set(ctx, &doc); err != nil {
		return goerr.Wrap(err, "failed to put update", goerr.V("id", update.ID))
	}
	return nil
}

func (r *Firestore) ListUpdates(ctx context.Context, input *ListUpdatesInput) ([]*model.Update, error) {
	if input == nil {
		input = &ListUpdatesInput{}
	}
	if input.TextSearch != "" {
		return nil, goerr.Wrap(ErrUnsupported, "firestore has no full-text search", goerr.V("query", input.TextSearch))
	}

	keywords := input.normalizedKeywords()
	limit := input.limit()

	// Keyword matching happens here, so keyword queries read a window of
	// recent documents instead of exactly limit
	window := limit
	if len(keywords) > 0 {
		window = max(r.scanWindow, limit)
	}

	q := r.client.Collection(collectionUpdates).Query
	if input.Date != "" {
		q = q.Where("date", "==", input.Date)
	}

	updates, err := r.collect(ctx, q.OrderBy("created_at", firestore.Desc).Limit(window), keywords, limit)
	if err == nil {
		return updates, nil
	}
	if input.Date == "" || status.Code(err) != codes.FailedPrecondition {
		return nil, classifyFirestoreError(err, input)
	}

	// Equality on date ordered by created_at needs the composite index
	// (date ASC, created_at DESC). Without it, read up to scanWindow
	// documents of the day and order them here.
	logging.From(ctx).Warn("firestore composite index on (date, created_at) is missing, sorting the day in memory",
		"date", input.Date,
		"scan_window", r.scanWindow)

	updates, err = r.collect(ctx, q.Limit(max(r.scanWindow, limit)), keywords, 0)
	if err != nil {
		return nil, classifyFirestoreError(err, input)
	}
	sort.SliceStable(updates, func(i, j int) bool {
		return updates[i].CreatedAt.After(updates[j].CreatedAt)
	})
	if len(updates) > limit {
		updates = updates[:limit]
	}
	return updates, nil
}

// collect decodes documents of q that match keywords. It stops after limit
// matches; limit 0 reads every document of q.
func (r *Firestore) collect(ctx context.Context, q firestore.Query, keywords []string, limit int) ([]*model.Update, error) {
	iter := q.Documents(ctx)
	defer iter.Stop()

	var updates []*model.Update
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}

		var u model.Update
		if err := doc.DataTo(&u); err != nil {
			return nil, goerr.Wrap(err, "failed to decode update", goerr.V("doc_id", doc.Ref.ID))
		}
		if u.ID == "" {
			u.ID = model.UpdateID(doc.Ref.ID)
		}
		if len(keywords) > 0 && !matchKeywords(&u, keywords) {
			continue
		}
		updates = append(updates, &u)
		if limit > 0 && len(updates) >= limit {
			break
		}
	}
	return updates, nil
}

// classifyFirestoreError maps a missing composite index or an invalid query to
// ErrUnsupported
func classifyFirestoreError(err error, input *ListUpdatesInput) error {
	switch status.Code(err) {
	case codes.FailedPrecondition, codes.InvalidArgument:
		return goerr.Wrap(ErrUnsupported, "firestore rejected query",
			goerr.V("cause", err.Error()),
			goerr.V("date", input.Date))
	}
	return goerr.Wrap(err, "failed to list updates", goerr.V("date", input.Date))
}
