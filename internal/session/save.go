package session

import (
	"path/filepath"

	errs "pdf-editor/internal/errors"
	"pdf-editor/internal/logger"
	"pdf-editor/internal/types"
)

// Save writes the current document to path. An existing file is backed up
// first and at most keep backups are retained. Annotations that were not
// baked are not part of the document and are not written. It returns the
// backup path, empty when nothing was overwritten.
func (s *Session) Save(path string, keep int) (string, error) {
	s.mu.Lock()
	if err := s.checkDocumentLocked(); err != nil {
		s.mu.Unlock()
		return "", err
	}
	data := s.data
	s.mu.Unlock()

	if path == "" {
		return "", types.NewAppError(types.ErrInvalidInput, "no file name given", nil)
	}

	backup, err := s.backups.WriteDocument(path, data, keep)
	if err != nil {
		saveErr := types.NewAppErrorWithDetails(types.ErrInternal, "failed to save document", path, err)
		s.fail(errs.StageSave, 0, saveErr)
		return "", saveErr
	}

	s.docName.Store(filepath.Base(path))
	if s.journal != nil {
		s.journal.RemoveError(errs.RecordID(errs.StageSave, 0))
	}
	if n := s.store.Len(); n > 0 {
		s.log.Warn("saved without unbaked annotations", logger.Int("annotations", n))
	}
	s.notify(LevelInfo, "", 0, "saved "+filepath.Base(path))
	s.emit(ChangeDocument)
	return backup, nil
}
