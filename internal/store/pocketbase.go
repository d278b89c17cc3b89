package store

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
)

// RecordsCollection holds one row per ledger key; see migrations.
const RecordsCollection = "ledger_records"

// PocketBaseStore keeps records in the application's SQLite database. Each
// Apply is one transaction on the app's non-concurrent connection, so applies
// are serialized by the database itself.
type PocketBaseStore struct {
	app core.App
}

// RecordsCollectionSchema describes the records collection; values are
// base64 CBOR and the organizer and owner indexes grow without bound.
func RecordsCollectionSchema() *core.Collection {
	collection := core.NewBaseCollection(RecordsCollection)
	collection.Fields.Add(
		&core.TextField{
			Name:     "key",
			Required: true,
			Max:      512,
		},
		&core.TextField{
			Name:     "value",
			Required: true,
			Max:      8 << 20,
		},
		&core.AutodateField{
			Name:     "created",
			OnCreate: true,
		},
		&core.AutodateField{
			Name:     "updated",
			OnCreate: true,
			OnUpdate: true,
		},
	)
	collection.AddIndex("idx_ledger_records_key", true, "`key`", "")
	return collection
}

func NewPocketBaseStore(app core.App) *PocketBaseStore {
	return &PocketBaseStore{app: app}
}

func (s *PocketBaseStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rec, err := findRecord(s.app, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, unavailable(err)
	}
	return decodeValue(rec)
}

func (s *PocketBaseStore) Apply(ctx context.Context, keys []string, fn Mutation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	keys = normalizeKeys(keys)

	var fnErr error
	err := s.app.RunInTransaction(func(txApp core.App) error {
		collection, err := txApp.FindCollectionByNameOrId(RecordsCollection)
		if err != nil {
			return err
		}

		rows := make(map[string]*core.Record, len(keys))
		current := make(map[string][]byte, len(keys))
		for _, k := range keys {
			rec, err := findRecord(txApp, k)
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			if err != nil {
				return err
			}
			v, err := decodeValue(rec)
			if err != nil {
				return err
			}
			rows[k] = rec
			current[k] = v
		}

		writes, err := fn(current)
		if err != nil {
			fnErr = err
			return err
		}

		for k, v := range writes {
			rec, ok := rows[k]
			if !ok {
				rec, err = findRecord(txApp, k)
				if errors.Is(err, sql.ErrNoRows) {
					rec = core.NewRecord(collection)
					rec.Set("key", k)
				} else if err != nil {
					return err
				}
			}
			rec.Set("value", base64.StdEncoding.EncodeToString(v))
			if err := txApp.Save(rec); err != nil {
				return fmt.Errorf("saving %s: %w", k, err)
			}
		}
		return nil
	})

	if fnErr != nil {
		return fnErr
	}
	if err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *PocketBaseStore) Ping(ctx context.Context) error {
	if _, err := s.app.DB().NewQuery("SELECT 1").Execute(); err != nil {
		return unavailable(err)
	}
	return nil
}

// Close is a no-op; the database belongs to the app.
func (s *PocketBaseStore) Close() error {
	return nil
}

func findRecord(app core.App, key string) (*core.Record, error) {
	return app.FindFirstRecordByFilter(RecordsCollection, "key = {:key}", dbx.Params{"key": key})
}

func decodeValue(rec *core.Record) ([]byte, error) {
	v, err := base64.StdEncoding.DecodeString(rec.GetString("value"))
	if err != nil {
		return nil, fmt.Errorf("store: corrupt value under %s: %w", rec.GetString("key"), err)
	}
	return v, nil
}
