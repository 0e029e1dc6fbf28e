package store

import (
	"database/sql"
	"errors"
	"time"
)

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

type rowScanner interface{ Scan(dest ...any) error }

func scanProject(scanner rowScanner) (*Project, error) {
	var (
		id           string
		ownerID      sql.NullInt64
		brandName    string
		inputsJSON   sql.NullString
		statusStr    string
		errorMessage sql.NullString
		createdRaw   string
		updatedRaw   string
	)
	if err := scanner.Scan(&id, &ownerID, &brandName, &inputsJSON, &statusStr, &errorMessage, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}

	project := &Project{
		ID:           id,
		OwnerID:      ownerID.Int64,
		BrandName:    brandName,
		InputsJSON:   inputsJSON.String,
		Status:       ProjectStatus(statusStr),
		ErrorMessage: errorMessage.String,
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		project.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		project.UpdatedAt = updated
	}
	return project, nil
}

func scanArtifact(scanner rowScanner) (*Artifact, error) {
	var (
		id         int64
		projectID  string
		payload    string
		model      sql.NullString
		fallback   sql.NullInt64
		createdRaw string
	)
	if err := scanner.Scan(&id, &projectID, &payload, &model, &fallback, &createdRaw); err != nil {
		return nil, err
	}

	artifact := &Artifact{
		ID:          id,
		ProjectID:   projectID,
		PayloadJSON: payload,
		Model:       model.String,
		Fallback:    fallback.Int64 != 0,
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		artifact.CreatedAt = created
	}
	return artifact, nil
}

func scanLicense(scanner rowScanner) (*LicenseRecord, error) {
	var (
		id          string
		fileName    string
		format      string
		digest      string
		payload     string
		sidecar     sql.NullInt64
		embeddedRaw string
	)
	if err := scanner.Scan(&id, &fileName, &format, &digest, &payload, &sidecar, &embeddedRaw); err != nil {
		return nil, err
	}

	record := &LicenseRecord{
		ID:          id,
		FileName:    fileName,
		Format:      format,
		Digest:      digest,
		PayloadJSON: payload,
		Sidecar:     sidecar.Int64 != 0,
	}
	if embedded, err := parseTimeString(embeddedRaw); err == nil {
		record.EmbeddedAt = embedded
	}
	return record, nil
}
