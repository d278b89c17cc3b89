package migrations

import (
	"ticket-ledger/internal/store"

	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		return app.Save(store.RecordsCollectionSchema())
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId(store.RecordsCollection)
		if err != nil {
			return err
		}

		return app.Delete(collection)
	})
}
