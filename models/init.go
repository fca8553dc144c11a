package models

import (
	"faceauth/db"

	"gorm.io/gorm"
)

func Init() {
	if err := Migrate(db.Instance); err != nil {
		panic(err)
	}
}

func Migrate(tx *gorm.DB) error {
	return tx.AutoMigrate(&User{}, &FaceEncoding{}, &SecurityAudit{})
}
