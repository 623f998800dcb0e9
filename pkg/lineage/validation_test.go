package lineage

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestCreateRequest_Validate(t *testing.T) {
	project := uuid.New()
	tests := []struct {
		name    string
		kind    Kind
		req     CreateRequest
		wantErr bool
	}{
		{"file ok", KindFile, CreateRequest{ProjectID: project, Name: "a.pdf", Content: strings.NewReader("")}, false},
		{"file dotfile", KindFile, CreateRequest{ProjectID: project, Name: "archive.tar.gz", Content: strings.NewReader("")}, false},
		{"file trailing dot", KindFile, CreateRequest{ProjectID: project, Name: "a.", Content: strings.NewReader("")}, true},
		{"file no content", KindFile, CreateRequest{ProjectID: project, Name: "a.pdf"}, true},
		{"document without title", KindDocument, CreateRequest{ProjectID: project}, false},
		{"document nil project", KindDocument, CreateRequest{Name: "Doc"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.validate(tt.kind)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInput)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestUpdateRequest_Validate(t *testing.T) {
	id := uuid.New()

	assert.NoError(t, (&UpdateRequest{ItemID: id, Content: strings.NewReader("x")}).validate(KindFile))
	assert.NoError(t, (&UpdateRequest{ItemID: id, Name: "Plain title", Content: strings.NewReader("x")}).validate(KindDocument))
	assert.ErrorIs(t, (&UpdateRequest{ItemID: id, Name: "noext", Content: strings.NewReader("x")}).validate(KindFile), ErrInvalidInput)
	assert.ErrorIs(t, (&UpdateRequest{ItemID: id}).validate(KindDocument), ErrInvalidInput)
	assert.ErrorIs(t, (&UpdateRequest{Content: strings.NewReader("x")}).validate(KindDocument), ErrInvalidInput)
}

func TestRestoreRequest_Validate(t *testing.T) {
	assert.NoError(t, (&RestoreRequest{ItemID: uuid.New(), VersionNumber: 1}).validate())
	assert.NoError(t, (&RestoreRequest{ItemID: uuid.New(), VersionNumber: -2}).validate())
	assert.ErrorIs(t, (&RestoreRequest{VersionNumber: 1}).validate(), ErrInvalidInput)
}
