package jobstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/jackzampolin/folio/internal/jobs"
)

// DefaultFirestoreCollection holds one document per job.
const DefaultFirestoreCollection = "translation_jobs"

// FirestoreConfig configures a Firestore store.
type FirestoreConfig struct {
	ProjectID  string
	Collection string // Default DefaultFirestoreCollection
	Logger     *slog.Logger
}

// Firestore stores jobs as documents keyed by job id. Updates run in
// transactions, which Firestore may retry, so update functions must be
// safe to call more than once.
//
// Listing by user or status needs composite indexes on
// (user_id, created_at desc) and (status, created_at desc).
type Firestore struct {
	client     *firestore.Client
	collection string
	logger     *slog.Logger
}

// NewFirestore creates a Firestore client for the project. The emulator is
// used when FIRESTORE_EMULATOR_HOST is set.
func NewFirestore(ctx context.Context, cfg FirestoreConfig) (*Firestore, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}
	client, err := firestore.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}
	coll := cfg.Collection
	if coll == "" {
		coll = DefaultFirestoreCollection
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Firestore{client: client, collection: coll, logger: logger}, nil
}

func (s *Firestore) doc(id string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(id)
}

// Create writes a new job document.
func (s *Firestore) Create(ctx context.Context, job *jobs.Job) error {
	if _, err := s.doc(job.ID).Create(ctx, job); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return fmt.Errorf("job %s already exists", job.ID)
		}
		return fmt.Errorf("failed to create job document: %w", err)
	}
	return nil
}

// Get returns a job by id.
func (s *Firestore) Get(ctx context.Context, id string) (*jobs.Job, error) {
	snap, err := s.doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, jobs.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load job document: %w", err)
	}
	return decodeSnapshot(snap)
}

// Update applies fn inside a transaction.
func (s *Firestore) Update(ctx context.Context, id string, fn func(*jobs.Job) error) (*jobs.Job, error) {
	ref := s.doc(id)
	var out *jobs.Job
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return jobs.ErrNotFound
			}
			return err
		}
		job, err := decodeSnapshot(snap)
		if err != nil {
			return err
		}
		if err := fn(job); err != nil {
			return err
		}
		job.UpdatedAt = time.Now().UTC()
		out = job
		return tx.Set(ref, job)
	})
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) || errors.Is(err, jobs.ErrTerminal) {
			return nil, err
		}
		return nil, fmt.Errorf("job %s transaction: %w", id, err)
	}
	return out, nil
}

// List returns matching jobs, newest first.
func (s *Firestore) List(ctx context.Context, filter jobs.ListFilter) ([]*jobs.Job, error) {
	q := s.client.Collection(s.collection).Query
	if filter.UserID != "" {
		q = q.Where("user_id", "==", filter.UserID)
	}
	if filter.Status != "" {
		q = q.Where("status", "==", string(filter.Status))
	}
	q = q.OrderBy("created_at", firestore.Desc).Limit(filter.EffectiveLimit())

	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []*jobs.Job
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list jobs: %w", err)
		}
		job, err := decodeSnapshot(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, nil
}

// Ping reads at most one document to confirm the backend answers.
func (s *Firestore) Ping(ctx context.Context) error {
	iter := s.client.Collection(s.collection).Limit(1).Documents(ctx)
	defer iter.Stop()
	if _, err := iter.Next(); err != nil && !errors.Is(err, iterator.Done) {
		return err
	}
	return nil
}

// Close closes the client.
func (s *Firestore) Close() error {
	return s.client.Close()
}

func decodeSnapshot(snap *firestore.DocumentSnapshot) (*jobs.Job, error) {
	var job jobs.Job
	if err := snap.DataTo(&job); err != nil {
		return nil, fmt.Errorf("failed to decode job document %s: %w", snap.Ref.ID, err)
	}
	if job.Pages == nil {
		job.Pages = []jobs.PageRecord{}
	}
	return &job, nil
}

var (
	_ jobs.Store  = (*Firestore)(nil)
	_ jobs.Pinger = (*Firestore)(nil)
	_ jobs.Closer = (*Firestore)(nil)
)
