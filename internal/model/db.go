package model

import "gorm.io/gorm"

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Content{}); err != nil {
		return err
	}

	if err := db.AutoMigrate(&Metadata{}); err != nil {
		return err
	}

	if err := db.AutoMigrate(&Tag{}); err != nil {
		return err
	}

	if err := db.AutoMigrate(&ContentTag{}); err != nil {
		return err
	}

	if err := db.AutoMigrate(&ContentVersion{}); err != nil {
		return err
	}

	return nil
}
