// Package file provides file-based persistence for deals, workflows and
// catalog entries. Each record is one JSON file; suitable for development
// and tests.
package file

import (
	"context"
	"os"
	"strings"

	"github.com/dealrelay/dealrelay/pkg/persistence"
)

// Persistence implements persistence.Persistence on the file system.
type Persistence struct {
	root         string
	dealRepo     *DealRepository
	workflowRepo *WorkflowRepository
	catalogRepo  *CatalogRepository
}

// NewPersistence creates a file persistence rooted at the given directory.
// Accepts a plain path or a file:// URL.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:         cleanRoot,
		dealRepo:     NewDealRepository(cleanRoot),
		workflowRepo: NewWorkflowRepository(cleanRoot),
		catalogRepo:  NewCatalogRepository(cleanRoot),
	}
}

func (fp *Persistence) DealRepository() persistence.DealRepository {
	return fp.dealRepo
}

func (fp *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return fp.workflowRepo
}

func (fp *Persistence) CatalogRepository() persistence.CatalogRepository {
	return fp.catalogRepo
}

// HealthCheck verifies the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Close performs any necessary cleanup. Nothing to do for files.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}
