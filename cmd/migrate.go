package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"ragdesk/src/infrastructure/job"
	"ragdesk/src/log"
	"ragdesk/src/storage/postgres/bookingctrl"
	"ragdesk/src/storage/postgres/documentctrl"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database tables",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	db, err := openDatabase()
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying *sql.DB: %w", err)
	}
	defer sqlDB.Close()

	bookings, err := bookingctrl.NewRepository(db)
	if err != nil {
		return err
	}

	migrations := []struct {
		name string
		run  func() error
	}{
		{"documents", documentctrl.NewRepository(db).AutoMigrate},
		{"bookings", bookings.AutoMigrate},
		{"jobs", job.NewPostgresJobRepository(db).AutoMigrate},
	}
	for _, m := range migrations {
		if err := m.run(); err != nil {
			return fmt.Errorf("failed to migrate %s: %w", m.name, err)
		}
		log.Info("Migrated table", "table", m.name)
	}
	return nil
}
