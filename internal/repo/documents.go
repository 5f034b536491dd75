package repo

import (
	"context"
	"database/sql"
	"strings"

	"github.com/JaligamRishitha/renewmart-sub002/internal/domain"
)

const documentColumns = `id,land_id,task_id,document_type,doc_slot,file_name,file_size,mime_type,uploaded_by,status,version_number,review_note,created_at,updated_at`

func scanDocument(scan func(dest ...any) error) (domain.Document, error) {
	var d domain.Document
	var taskID, mimeType, reviewNote sql.NullString
	var fileSize sql.NullInt64
	err := scan(&d.ID, &d.LandID, &taskID, &d.DocumentType, &d.DocSlot, &d.FileName, &fileSize, &mimeType, &d.UploadedBy, &d.Status, &d.VersionNumber, &reviewNote, &d.CreatedAt, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		return d, ErrNotFound
	}
	if err != nil {
		return d, err
	}
	if taskID.Valid {
		d.TaskID = &taskID.String
	}
	if fileSize.Valid {
		d.FileSize = &fileSize.Int64
	}
	if mimeType.Valid {
		d.MimeType = mimeType.String
	}
	if reviewNote.Valid {
		d.ReviewNote = reviewNote.String
	}
	return d, nil
}

func (r Repo) InsertDocument(ctx context.Context, tx *sql.Tx, d domain.Document) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO documents(`+documentColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		d.ID, d.LandID, nullableStringPtr(d.TaskID), d.DocumentType, d.DocSlot, d.FileName, nullableInt64Ptr(d.FileSize),
		nullable(d.MimeType), d.UploadedBy, d.Status, d.VersionNumber, nullable(d.ReviewNote), d.CreatedAt, d.UpdatedAt)
	return err
}

// NextDocumentVersion returns max(version)+1 for the (land, type, slot)
// lineage inside the caller's transaction.
func (r Repo) NextDocumentVersion(ctx context.Context, tx *sql.Tx, landID, docType, slot string) (int, error) {
	var max int
	err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(version_number),0) FROM documents WHERE land_id=? AND document_type=? AND doc_slot=?`,
		landID, docType, slot).Scan(&max)
	if err != nil {
		return 0, err
	}
	return max + 1, nil
}

func (r Repo) UpdateDocumentReview(ctx context.Context, tx *sql.Tx, id, status, reviewNote, now string) error {
	res, err := tx.ExecContext(ctx, `UPDATE documents SET status=?, review_note=?, updated_at=? WHERE id=?`,
		status, nullable(reviewNote), now, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetDocument(ctx context.Context, id string) (domain.Document, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id=?`, id)
	return scanDocument(row.Scan)
}

func (r Repo) GetDocumentTx(ctx context.Context, tx *sql.Tx, id string) (domain.Document, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id=?`, id)
	return scanDocument(row.Scan)
}

type DocumentFilters struct {
	LandID       string
	TaskID       string
	DocumentType string
	DocSlot      string
	Status       string
	// LatestOnly keeps only the highest version per (type, slot) lineage.
	LatestOnly bool
	Limit      int
}

func (r Repo) ListDocuments(ctx context.Context, f DocumentFilters) ([]domain.Document, error) {
	var clauses []string
	var args []any
	if f.LandID != "" {
		clauses = append(clauses, "land_id=?")
		args = append(args, f.LandID)
	}
	if f.TaskID != "" {
		clauses = append(clauses, "task_id=?")
		args = append(args, f.TaskID)
	}
	if f.DocumentType != "" {
		clauses = append(clauses, "document_type=?")
		args = append(args, f.DocumentType)
	}
	if f.DocSlot != "" {
		clauses = append(clauses, "doc_slot=?")
		args = append(args, f.DocSlot)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.LatestOnly {
		clauses = append(clauses, `version_number = (
			SELECT MAX(d2.version_number) FROM documents d2
			WHERE d2.land_id=documents.land_id AND d2.document_type=documents.document_type AND d2.doc_slot=documents.doc_slot
		)`)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + documentColumns + ` FROM documents ` + where + ` ORDER BY document_type ASC, doc_slot ASC, version_number DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Document
	for rows.Next() {
		d, err := scanDocument(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}
