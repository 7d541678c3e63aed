package models

import "gorm.io/gorm"

// All lists every persisted entity in dependency order.
func All() []interface{} {
	return []interface{}{
		&Role{}, &User{}, &Session{}, &AuditLog{},
		&Plant{}, &Product{}, &ProductParameter{},
		&LabReport{}, &LabReportParameter{}, &ReportStatusEvent{},
	}
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(All()...)
}
