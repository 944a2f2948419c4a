// models/category.go
package models

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// Category groups questions; APIID is the category id at the external question source.
type Category struct {
	ID          uint    `gorm:"primaryKey" json:"id"`
	Name        string  `gorm:"size:100;uniqueIndex;not null" json:"name"`
	Description *string `gorm:"type:text" json:"description,omitempty"`
	APIID       *int    `gorm:"column:api_id" json:"api_id,omitempty"`

	Questions []Question `gorm:"foreignKey:CategoryID" json:"questions,omitempty"`
}

func (Category) TableName() string {
	return "categories"
}

func (c *Category) BeforeSave(tx *gorm.DB) error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: category name is empty", ErrInvalidValue)
	}
	return nil
}

func (c *Category) String() string {
	return fmt.Sprintf("<Category %s>", c.Name)
}

var CategoryFields = Descriptor[Category]{
	New: func() *Category { return &Category{} },
	Fields: map[string]Setter[Category]{
		"name":        field(func(c *Category) *string { return &c.Name }, toString),
		"description": field(func(c *Category) **string { return &c.Description }, optional(toString)),
		"api_id":      field(func(c *Category) **int { return &c.APIID }, optional(toInt)),
	},
}
