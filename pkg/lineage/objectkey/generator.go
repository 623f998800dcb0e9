package objectkey

import (
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
)

// Generator defines the interface for object key generation strategies
type Generator interface {
	// GenerateKey creates an object key for a blob owned by projectID
	GenerateKey(projectID, objectID uuid.UUID, fileName string) string
}

// ProjectGenerator produces flat per-project keys: {projectID}/{objectID}{ext}
type ProjectGenerator struct{}

func NewProjectGenerator() *ProjectGenerator {
	return &ProjectGenerator{}
}

func (g *ProjectGenerator) GenerateKey(projectID, objectID uuid.UUID, fileName string) string {
	return fmt.Sprintf("%s/%s%s", projectID, objectID, Extension(fileName))
}

// ShardedGenerator spreads a project's blobs over Git-style shard directories
// Structure: {projectID}/ab/cd1234ef5678...{ext}
type ShardedGenerator struct {
	// ShardLength controls how many characters to use for sharding (default: 2)
	ShardLength int
}

func NewShardedGenerator() *ShardedGenerator {
	return &ShardedGenerator{ShardLength: 2}
}

func (g *ShardedGenerator) GenerateKey(projectID, objectID uuid.UUID, fileName string) string {
	objectIDStr := strings.ReplaceAll(objectID.String(), "-", "")

	shardLength := g.ShardLength
	if shardLength <= 0 || shardLength >= len(objectIDStr) {
		shardLength = 2
	}

	return fmt.Sprintf("%s/%s/%s%s", projectID, objectIDStr[:shardLength], objectIDStr[shardLength:], Extension(fileName))
}

// CustomFuncGenerator allows users to provide their own key generation function
type CustomFuncGenerator struct {
	GenerateFunc func(projectID, objectID uuid.UUID, fileName string) string
}

func NewCustomFuncGenerator(fn func(projectID, objectID uuid.UUID, fileName string) string) *CustomFuncGenerator {
	return &CustomFuncGenerator{GenerateFunc: fn}
}

func (g *CustomFuncGenerator) GenerateKey(projectID, objectID uuid.UUID, fileName string) string {
	return g.GenerateFunc(projectID, objectID, fileName)
}

// Extension returns the lower-cased extension of fileName including the dot,
// or "" when there is none. Characters unsafe in paths are replaced.
func Extension(fileName string) string {
	ext := path.Ext(strings.ReplaceAll(fileName, "\\", "/"))
	if len(ext) < 2 {
		return ""
	}
	return strings.ToLower(extReplacer.Replace(ext))
}

var extReplacer = strings.NewReplacer(
	"/", "_",
	":", "_",
	"*", "_",
	"?", "_",
	"\"", "_",
	"<", "_",
	">", "_",
	"|", "_",
	" ", "_",
)

// NewRecommendedGenerator returns the generator used when none is configured
func NewRecommendedGenerator() Generator {
	return NewProjectGenerator()
}
