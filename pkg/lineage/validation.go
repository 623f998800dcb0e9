package lineage

import (
	"errors"
	"path"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
)

// MaxNameLength bounds item names and document titles.
const MaxNameLength = 255

// DefaultDocumentTitle is used when a document is created without a title.
const DefaultDocumentTitle = "Untitled Doc"

var requiredUUID = validation.By(func(value interface{}) error {
	if id, ok := value.(uuid.UUID); ok && id == uuid.Nil {
		return errors.New("cannot be blank")
	}
	return nil
})

// hasExtension rejects file names whose extension cannot be resolved.
var hasExtension = validation.By(func(value interface{}) error {
	name, _ := value.(string)
	if name == "" {
		return nil
	}
	if ext := path.Ext(name); len(ext) < 2 {
		return errors.New("must have a file extension")
	}
	return nil
})

func (r *CreateRequest) validate(kind Kind) error {
	isFile := kind == KindFile
	err := validation.ValidateStruct(r,
		validation.Field(&r.ProjectID, requiredUUID),
		validation.Field(&r.Name,
			validation.Length(0, MaxNameLength),
			validation.When(isFile, validation.Required, hasExtension),
		),
		validation.Field(&r.Content, validation.When(isFile, validation.NotNil)),
	)
	if err != nil {
		return invalidInput(err)
	}
	return nil
}

func (r *UpdateRequest) validate(kind Kind) error {
	err := validation.ValidateStruct(r,
		validation.Field(&r.ItemID, requiredUUID),
		validation.Field(&r.Name,
			validation.Length(0, MaxNameLength),
			validation.When(kind == KindFile, hasExtension),
		),
		validation.Field(&r.Content, validation.NotNil),
	)
	if err != nil {
		return invalidInput(err)
	}
	return nil
}

// Version numbers are not checked here; a number that names no version is
// reported as not found.
func (r *RestoreRequest) validate() error {
	err := validation.ValidateStruct(r,
		validation.Field(&r.ItemID, requiredUUID),
	)
	if err != nil {
		return invalidInput(err)
	}
	return nil
}
