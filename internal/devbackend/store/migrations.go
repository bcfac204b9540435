package store

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// runMigrations applies the schema with gormigrate.
func runMigrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "001_interaction_tables",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&InteractionLog{}); err != nil {
					return err
				}
				return tx.AutoMigrate(&ExtractedData{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("extracted_data", "interaction_logs")
			},
		},
		{
			ID: "002_extracted_data_sentiment_index",
			Migrate: func(tx *gorm.DB) error {
				return tx.Exec("CREATE INDEX IF NOT EXISTS idx_extracted_data_sentiment ON extracted_data(sentiment)").Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Exec("DROP INDEX IF EXISTS idx_extracted_data_sentiment").Error
			},
		},
	})
	return m.Migrate()
}
