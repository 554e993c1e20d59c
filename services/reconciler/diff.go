package reconciler

import (
	"slices"

	"sjsage522/catalogworker/internal/models"
)

// Names of the compared fields, in the order they are reported
const (
	FieldTitle          = "title"
	FieldPrice          = "price"
	FieldPrimaryImage   = "primary_image"
	FieldDescription    = "description"
	FieldSpecifications = "specifications"
	FieldCategoryPath   = "category_path"
)

type fieldComparison struct {
	name  string
	equal func(a, b models.ProductRecord) bool
}

var comparedFields = []fieldComparison{
	{FieldTitle, func(a, b models.ProductRecord) bool { return a.Title == b.Title }},
	{FieldPrice, func(a, b models.ProductRecord) bool { return a.Price.Equal(b.Price) }},
	{FieldPrimaryImage, func(a, b models.ProductRecord) bool { return a.PrimaryImage == b.PrimaryImage }},
	{FieldDescription, func(a, b models.ProductRecord) bool { return a.Description == b.Description }},
	{FieldSpecifications, func(a, b models.ProductRecord) bool { return slices.Equal(a.Specifications, b.Specifications) }},
	{FieldCategoryPath, func(a, b models.ProductRecord) bool { return slices.Equal(a.CategoryPath, b.CategoryPath) }},
}

// ChangedFields lists the compared fields that differ between the stored and
// the fresh record. A nil slice equals an empty one. Fields outside the
// compared set, such as the URL or other images, never count as a change.
func ChangedFields(stored, fresh models.ProductRecord) []string {
	var changed []string
	for _, f := range comparedFields {
		if !f.equal(stored, fresh) {
			changed = append(changed, f.name)
		}
	}
	return changed
}
