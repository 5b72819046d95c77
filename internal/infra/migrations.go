package infra

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	dbm "barangay/internal/models/db_models"
)

func Migrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "20250601_create_accounts_residents",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&dbm.Account{}, &dbm.Resident{}, &dbm.Address{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("addresses", "residents", "accounts")
			},
		},
		{
			ID: "20250601_create_certificate_requests",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&dbm.CertificateRequest{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("certificate_requests")
			},
		},
		{
			ID: "20250615_create_payments",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&dbm.Payment{}, &dbm.PaymentEvent{}); err != nil {
					return err
				}
				// at most one active payment per request
				return tx.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS ux_payments_active_request
					ON payments (certificate_request_id) WHERE is_active = true`).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("payment_events", "payments")
			},
		},
		{
			ID: "20250701_create_faq_entries",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&dbm.FaqEntry{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("faq_entries")
			},
		},
		{
			ID: "20250702_seed_faq_entries",
			Migrate: func(tx *gorm.DB) error {
				faqs := defaultFaqs()
				return tx.Create(&faqs).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Unscoped().Where("1 = 1").Delete(&dbm.FaqEntry{}).Error
			},
		},
	})
	return m.Migrate()
}

func defaultFaqs() []dbm.FaqEntry {
	return []dbm.FaqEntry{
		{
			Question: "What are the requirements for a Barangay Clearance?",
			Answer:   "Bring one valid government ID and proof of residency. Upload a photo of your ID when you submit the request online.",
			Keywords: []string{"clearance", "requirements", "requirement"},
			IsActive: true,
		},
		{
			Question: "How much does a certificate cost?",
			Answer:   "The processing fee is PHP 280.00 plus a PHP 20.00 service charge. Delivery adds PHP 100.00.",
			Keywords: []string{"fee", "cost", "price", "how much"},
			IsActive: true,
		},
		{
			Question: "How do I pay?",
			Answer:   "Once your request is approved it moves to Awaiting Payment. Open the request and choose Pay Online, or pay in cash at the barangay hall.",
			Keywords: []string{"pay", "payment", "gcash", "maya", "card"},
			IsActive: true,
		},
		{
			Question: "How long does processing take?",
			Answer:   "Most certificates are ready within 1 to 3 working days after payment is confirmed.",
			Keywords: []string{"long", "processing", "days", "when"},
			IsActive: true,
		},
		{
			Question: "What are the office hours?",
			Answer:   "The barangay hall is open Monday to Friday, 8:00 AM to 5:00 PM.",
			Keywords: []string{"hours", "open", "office", "schedule"},
			IsActive: true,
		},
	}
}
