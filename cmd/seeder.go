package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/frahmantamala/spm-sp2d/internal/platform/database"
	"github.com/frahmantamala/spm-sp2d/internal/role"
	rolePostgres "github.com/frahmantamala/spm-sp2d/internal/role/postgres"
	"github.com/frahmantamala/spm-sp2d/internal/taxcode"
	taxcodePostgres "github.com/frahmantamala/spm-sp2d/internal/taxcode/postgres"
	"github.com/frahmantamala/spm-sp2d/pkg/logger"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with OPDs, one user per workflow role, tax codes and default system settings.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		sqlDB, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer sqlDB.Close()

		db, err := database.OpenGorm(sqlDB.DB, false)
		if err != nil {
			log.Fatalf("failed to open gorm: %v", err)
		}

		ctx := context.Background()
		lg := logger.LoggerWrapper()

		if clearData {
			clearSeedData(db)
		}

		opds := []struct {
			Kode string
			Nama string
		}{
			{"1.01.01", "Dinas Pendidikan"},
			{"1.02.01", "Dinas Kesehatan"},
			{"5.02.01", "Badan Keuangan dan Aset Daerah"},
		}
		for _, o := range opds {
			if err := db.Exec("INSERT INTO opd (kode, nama, created_at) VALUES (?, ?, now()) ON CONFLICT (kode) DO NOTHING", o.Kode, o.Nama).Error; err != nil {
				log.Fatalf("failed to insert opd %s: %v", o.Kode, err)
			}
		}
		fmt.Println("Seeded OPDs")

		var pendidikanID int64
		if err := db.Raw("SELECT id FROM opd WHERE kode = ?", "1.01.01").Row().Scan(&pendidikanID); err != nil {
			log.Fatalf("failed to lookup opd id: %v", err)
		}

		password := "password"
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("failed to hash password: %v", err)
		}

		users := []struct {
			Email string
			Name  string
			Role  role.Role
			OPDID *int64
		}{
			{"bendahara@mail.com", "Bendahara Dinas Pendidikan", role.BendaharaOPD, &pendidikanID},
			{"resepsionis@mail.com", "Resepsionis BKAD", role.Resepsionis, nil},
			{"pbmd@mail.com", "Verifikator PBMD", role.PBMD, nil},
			{"akuntansi@mail.com", "Verifikator Akuntansi", role.Akuntansi, nil},
			{"perbendaharaan@mail.com", "Verifikator Perbendaharaan", role.Perbendaharaan, nil},
			{"kepala@mail.com", "Kepala BKAD", role.KepalaBKAD, nil},
			{"kuasabud@mail.com", "Kuasa BUD", role.KuasaBUD, nil},
			{"admin@mail.com", "Administrator", role.Administrator, nil},
		}

		directory := role.NewDirectory(rolePostgres.NewRoleRepository(db), lg)
		for _, u := range users {
			userID, err := ensureUser(db, u.Email, u.Name, string(hash))
			if err != nil {
				log.Fatalf("failed to seed user %s: %v", u.Email, err)
			}

			has, err := directory.HasRole(ctx, userID, u.Role)
			if err != nil {
				log.Fatalf("failed to check role of %s: %v", u.Email, err)
			}
			if has {
				continue
			}
			if err := directory.Assign(ctx, role.Assignment{UserID: userID, Role: u.Role, OPDID: u.OPDID}); err != nil {
				log.Fatalf("failed to assign role to %s: %v", u.Email, err)
			}
			fmt.Printf("Seeded %s user: %s\n", u.Role, u.Email)
		}

		taxCodes := taxcode.NewService(taxcodePostgres.NewTaxCodeRepository(db), lg)
		codes := []struct {
			Code string
			Name string
			Rate string
		}{
			{"PPH21", "PPh Pasal 21", "5"},
			{"PPH22", "PPh Pasal 22", "1.5"},
			{"PPH23", "PPh Pasal 23", "2"},
			{"PPH4-2", "PPh Pasal 4 ayat 2", "10"},
			{"PPN", "Pajak Pertambahan Nilai", "11"},
			{"IWP", "Iuran Wajib Pegawai", ""},
		}
		for _, c := range codes {
			tc := &taxcode.TaxCode{Code: c.Code, Name: c.Name, IsActive: true}
			if c.Rate != "" {
				rate := decimal.RequireFromString(c.Rate)
				tc.DefaultRate = &rate
			}
			if err := taxCodes.Save(ctx, tc); err != nil {
				log.Fatalf("failed to seed tax code %s: %v", c.Code, err)
			}
		}
		fmt.Println("Tax codes seeded successfully")

		defaults := map[string]string{
			"otp_test_mode":          "false",
			"otp_test_code":          "",
			"emergency_mode_enabled": "false",
			"emergency_mode_reason":  "",
		}
		for key, value := range defaults {
			if err := db.Exec("INSERT INTO system_config (key, value, updated_at) VALUES (?, ?, now()) ON CONFLICT (key) DO NOTHING", key, value).Error; err != nil {
				log.Fatalf("failed to seed system config %s: %v", key, err)
			}
		}
		fmt.Println("System config defaults seeded successfully")
	},
}

func ensureUser(db *gorm.DB, email, name, hash string) (int64, error) {
	var id int64
	if err := db.Raw("SELECT id FROM users WHERE email = ?", email).Row().Scan(&id); err == nil {
		return id, nil
	}
	err := db.Raw(
		"INSERT INTO users (email, name, password_hash, is_active, created_at, updated_at) VALUES (?, ?, ?, true, now(), now()) RETURNING id",
		email, name, hash).Row().Scan(&id)
	return id, err
}

func clearSeedData(db *gorm.DB) {
	tables := []string{
		"notifications", "one_time_codes", "attachments",
		"sp2d_potongan", "sp2d", "spm_stage_events", "spm_potongan", "spm",
		"user_roles", "users", "opd", "tax_codes",
	}
	for _, t := range tables {
		if err := db.Exec(fmt.Sprintf("DELETE FROM %s", t)).Error; err != nil {
			log.Fatalf("failed to clear %s: %v", t, err)
		}
	}
	fmt.Println("Cleared existing data")
}
