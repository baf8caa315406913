package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"licensescan/internal"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrDuplicateLicense = errors.New("license number already exists")
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS students (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL,
  email TEXT NOT NULL DEFAULT '',
  phone TEXT NOT NULL DEFAULT '',
  license_number TEXT UNIQUE,
  date_of_birth TEXT NOT NULL DEFAULT '',
  address TEXT NOT NULL DEFAULT '',
  emergency_contact TEXT NOT NULL DEFAULT '',
  emergency_phone TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL DEFAULT 'Active',
  lessons_completed INTEGER NOT NULL DEFAULT 0,
  instructor_id INTEGER,
  lastSeenAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_students_name ON students(name);

CREATE TABLE IF NOT EXISTS roster_students (
  id INTEGER PRIMARY KEY,
  name TEXT NOT NULL,
  email TEXT NOT NULL DEFAULT '',
  phone TEXT NOT NULL DEFAULT '',
  license_number TEXT UNIQUE,
  date_of_birth TEXT NOT NULL DEFAULT '',
  address TEXT NOT NULL DEFAULT '',
  emergency_contact TEXT NOT NULL DEFAULT '',
  emergency_phone TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL DEFAULT 'Active',
  lessons_completed INTEGER NOT NULL DEFAULT 0,
  instructor_id INTEGER,
  lastSeenAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_roster_students_name ON roster_students(name);

CREATE TABLE IF NOT EXISTS emails (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  provider TEXT NOT NULL,
  messageId TEXT NOT NULL,
  subject TEXT,
  sender TEXT,
  receivedAt TEXT,
  hash TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'fetched',
  rawRef TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(provider, messageId)
);

CREATE TABLE IF NOT EXISTS scans (
  id TEXT PRIMARY KEY,
  source TEXT NOT NULL,
  ref TEXT NOT NULL DEFAULT '',
  emailId INTEGER,
  rawText TEXT NOT NULL,
  status TEXT NOT NULL,
  licenseNumber TEXT NOT NULL DEFAULT '',
  studentName TEXT NOT NULL DEFAULT '',
  fieldsJson TEXT NOT NULL,
  studentJson TEXT NOT NULL,
  licenseRawJson TEXT NOT NULL,
  matchJson TEXT NOT NULL,
  remoteStudentId INTEGER,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(emailId) REFERENCES emails(id)
);
CREATE INDEX IF NOT EXISTS idx_scans_status ON scans(status);
CREATE INDEX IF NOT EXISTS idx_scans_license ON scans(licenseNumber);

CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  traceId TEXT NOT NULL,
  emailId INTEGER,
  timingsJson TEXT NOT NULL,
  countsJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

const studentColumns = `id, name, email, phone, COALESCE(license_number, ''), date_of_birth, address,
       emergency_contact, emergency_phone, status, lessons_completed, instructor_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStudent(row rowScanner) (internal.StudentRecord, error) {
	var s internal.StudentRecord
	var id int
	var instructorID sql.NullInt64
	if err := row.Scan(
		&id, &s.Name, &s.Email, &s.Phone, &s.LicenseNumber, &s.DateOfBirth, &s.Address,
		&s.EmergencyContact, &s.EmergencyPhone, &s.Status, &s.LessonsCompleted, &instructorID,
	); err != nil {
		return internal.StudentRecord{}, err
	}
	s.ID = &id
	if instructorID.Valid {
		v := int(instructorID.Int64)
		s.InstructorID = &v
	}
	return s, nil
}

func (d *DB) InsertStudent(s internal.StudentRecord) (internal.StudentRecord, error) {
	if s.Status == "" {
		s.Status = internal.StatusActive
	}
	result, err := d.conn.Exec(`
INSERT INTO students (name, email, phone, license_number, date_of_birth, address,
                      emergency_contact, emergency_phone, status, lessons_completed, instructor_id)
VALUES (?, ?, ?, NULLIF(?, ''), ?, ?, ?, ?, ?, ?, ?)
`, s.Name, s.Email, s.Phone, s.LicenseNumber, s.DateOfBirth, s.Address,
		s.EmergencyContact, s.EmergencyPhone, s.Status, s.LessonsCompleted, s.InstructorID)
	if isUniqueViolation(err) {
		return internal.StudentRecord{}, fmt.Errorf("%w: %s", ErrDuplicateLicense, s.LicenseNumber)
	}
	if err != nil {
		return internal.StudentRecord{}, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return internal.StudentRecord{}, err
	}
	return d.GetStudent(int(id))
}

// UpsertStudents writes roster_students only; local students keep their own ids.
func (d *DB) UpsertStudents(students []internal.StudentRecord) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
INSERT INTO roster_students (
  id, name, email, phone, license_number, date_of_birth, address,
  emergency_contact, emergency_phone, status, lessons_completed, instructor_id, lastSeenAt
) VALUES (?, ?, ?, ?, NULLIF(?, ''), ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(id) DO UPDATE SET
  name=excluded.name,
  email=excluded.email,
  phone=excluded.phone,
  license_number=excluded.license_number,
  date_of_birth=excluded.date_of_birth,
  address=excluded.address,
  emergency_contact=excluded.emergency_contact,
  emergency_phone=excluded.emergency_phone,
  status=excluded.status,
  lessons_completed=excluded.lessons_completed,
  instructor_id=excluded.instructor_id,
  lastSeenAt=CURRENT_TIMESTAMP
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range students {
		if s.ID == nil {
			continue
		}
		if s.LicenseNumber != "" {
			if _, err := tx.Exec(`DELETE FROM roster_students WHERE license_number = ? AND id <> ?`, s.LicenseNumber, *s.ID); err != nil {
				return err
			}
		}
		status := s.Status
		if status == "" {
			status = internal.StatusActive
		}
		if _, err := stmt.Exec(
			*s.ID, s.Name, s.Email, s.Phone, s.LicenseNumber, s.DateOfBirth, s.Address,
			s.EmergencyContact, s.EmergencyPhone, status, s.LessonsCompleted, s.InstructorID,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (d *DB) GetStudent(id int) (internal.StudentRecord, error) {
	row := d.conn.QueryRow(`SELECT `+studentColumns+` FROM students WHERE id = ?`, id)
	s, err := scanStudent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return internal.StudentRecord{}, fmt.Errorf("student %d: %w", id, ErrNotFound)
	}
	return s, err
}

func (d *DB) GetStudentByLicense(licenseNumber string) (*internal.StudentRecord, error) {
	return d.studentByLicense("students", licenseNumber)
}

func (d *DB) GetRosterStudentByLicense(licenseNumber string) (*internal.StudentRecord, error) {
	return d.studentByLicense("roster_students", licenseNumber)
}

func (d *DB) ListStudents() ([]internal.StudentRecord, error) {
	return d.listStudents("students")
}

func (d *DB) ListRosterStudents() ([]internal.StudentRecord, error) {
	return d.listStudents("roster_students")
}

func (d *DB) studentByLicense(table, licenseNumber string) (*internal.StudentRecord, error) {
	row := d.conn.QueryRow(`SELECT `+studentColumns+` FROM `+table+` WHERE license_number = ?`, licenseNumber)
	s, err := scanStudent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (d *DB) listStudents(table string) ([]internal.StudentRecord, error) {
	rows, err := d.conn.Query(`SELECT ` + studentColumns + ` FROM ` + table + ` ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.StudentRecord
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (d *DB) InsertScan(scan internal.ScanRow) (internal.ScanRow, error) {
	if scan.ID == "" {
		return internal.ScanRow{}, errors.New("scan id is required")
	}
	fieldsJSON, _ := json.Marshal(scan.Fields)
	studentJSON, _ := json.Marshal(scan.Student)
	licenseRawJSON, _ := json.Marshal(scan.LicenseRaw)
	matchJSON, _ := json.Marshal(scan.Match)

	_, err := d.conn.Exec(`
INSERT INTO scans (id, source, ref, emailId, rawText, status, licenseNumber, studentName,
                   fieldsJson, studentJson, licenseRawJson, matchJson, remoteStudentId)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, scan.ID, string(scan.Source), scan.Ref, scan.EmailID, scan.RawText, string(scan.Status),
		scan.Student.LicenseNumber, scan.Student.Name,
		string(fieldsJSON), string(studentJSON), string(licenseRawJSON), string(matchJSON), scan.RemoteStudentID)
	if err != nil {
		return internal.ScanRow{}, err
	}
	return d.GetScan(scan.ID)
}

const scanColumns = `id, source, ref, emailId, rawText, status, fieldsJson, studentJson, licenseRawJson,
       matchJson, remoteStudentId, createdAt`

func scanScan(row rowScanner) (internal.ScanRow, error) {
	var s internal.ScanRow
	var source, status string
	var emailID, remoteID sql.NullInt64
	var fieldsJSON, studentJSON, licenseRawJSON, matchJSON string
	if err := row.Scan(
		&s.ID, &source, &s.Ref, &emailID, &s.RawText, &status,
		&fieldsJSON, &studentJSON, &licenseRawJSON, &matchJSON, &remoteID, &s.CreatedAt,
	); err != nil {
		return internal.ScanRow{}, err
	}
	s.Source = internal.ScanSource(source)
	s.Status = internal.ScanStatus(status)
	if emailID.Valid {
		v := int(emailID.Int64)
		s.EmailID = &v
	}
	if remoteID.Valid {
		v := int(remoteID.Int64)
		s.RemoteStudentID = &v
	}
	_ = json.Unmarshal([]byte(fieldsJSON), &s.Fields)
	_ = json.Unmarshal([]byte(studentJSON), &s.Student)
	_ = json.Unmarshal([]byte(licenseRawJSON), &s.LicenseRaw)
	_ = json.Unmarshal([]byte(matchJSON), &s.Match)
	return s, nil
}

func (d *DB) GetScan(id string) (internal.ScanRow, error) {
	row := d.conn.QueryRow(`SELECT `+scanColumns+` FROM scans WHERE id = ?`, id)
	s, err := scanScan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return internal.ScanRow{}, fmt.Errorf("scan %s: %w", id, ErrNotFound)
	}
	return s, err
}

func (d *DB) queryScans(query string, args ...any) ([]internal.ScanRow, error) {
	rows, err := d.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.ScanRow
	for rows.Next() {
		s, err := scanScan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (d *DB) ListScansByStatus(status internal.ScanStatus, limit int) ([]internal.ScanRow, error) {
	return d.queryScans(`SELECT `+scanColumns+` FROM scans WHERE status = ? ORDER BY createdAt ASC, id ASC LIMIT ?`, string(status), limit)
}

func (d *DB) ListScansByEmail(emailID int) ([]internal.ScanRow, error) {
	return d.queryScans(`SELECT `+scanColumns+` FROM scans WHERE emailId = ? ORDER BY createdAt ASC, id ASC`, emailID)
}

func (d *DB) UpdateScanStatus(id string, status internal.ScanStatus, remoteStudentID *int) error {
	result, err := d.conn.Exec(`
UPDATE scans SET status = ?, remoteStudentId = COALESCE(?, remoteStudentId), updatedAt = CURRENT_TIMESTAMP
WHERE id = ?`, string(status), remoteStudentID, id)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("scan %s: %w", id, ErrNotFound)
	}
	return nil
}

func (d *DB) ClearEmailScans(emailID int) error {
	_, err := d.conn.Exec(`DELETE FROM scans WHERE emailId = ?`, emailID)
	return err
}

func (d *DB) GetExportRows(status internal.ScanStatus) ([]internal.ScanRow, error) {
	order := `
ORDER BY
  CASE status WHEN 'review' THEN 1 WHEN 'ready' THEN 2 WHEN 'known' THEN 3 ELSE 4 END,
  createdAt ASC, id ASC`
	if status == "" {
		return d.queryScans(`SELECT ` + scanColumns + ` FROM scans` + order)
	}
	return d.queryScans(`SELECT `+scanColumns+` FROM scans WHERE status = ?`+order, string(status))
}

func (d *DB) UpsertEmail(provider, messageID, subject, sender, receivedAt, hash, rawRef, status string) (internal.EmailRow, error) {
	_, err := d.conn.Exec(`
INSERT INTO emails (provider, messageId, subject, sender, receivedAt, hash, status, rawRef)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(provider, messageId) DO UPDATE SET
  subject=excluded.subject,
  sender=excluded.sender,
  receivedAt=excluded.receivedAt,
  hash=excluded.hash,
  rawRef=excluded.rawRef,
  updatedAt=CURRENT_TIMESTAMP
`, provider, messageID, subject, sender, receivedAt, hash, status, rawRef)
	if err != nil {
		return internal.EmailRow{}, err
	}

	row, err := d.GetEmailByProviderMessageID(provider, messageID)
	if err != nil {
		return internal.EmailRow{}, err
	}
	if row == nil {
		return internal.EmailRow{}, errors.New("failed to upsert email")
	}
	return *row, nil
}

func (d *DB) GetEmailByProviderMessageID(provider, messageID string) (*internal.EmailRow, error) {
	var row internal.EmailRow
	err := d.conn.QueryRow(`
SELECT id, provider, messageId, subject, sender, receivedAt, hash, status, rawRef
FROM emails WHERE provider = ? AND messageId = ?
`, provider, messageID).Scan(
		&row.ID, &row.Provider, &row.MessageID, &row.Subject, &row.Sender, &row.ReceivedAt, &row.Hash, &row.Status, &row.RawRef,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) ListEmailsByStatus(status string, limit int) ([]internal.EmailRow, error) {
	rows, err := d.conn.Query(`
SELECT id, provider, messageId, subject, sender, receivedAt, hash, status, rawRef
FROM emails WHERE status = ? ORDER BY receivedAt ASC LIMIT ?
`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.EmailRow
	for rows.Next() {
		var row internal.EmailRow
		if err := rows.Scan(&row.ID, &row.Provider, &row.MessageID, &row.Subject, &row.Sender, &row.ReceivedAt, &row.Hash, &row.Status, &row.RawRef); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) UpdateEmailStatus(emailID int, status string) error {
	_, err := d.conn.Exec(`UPDATE emails SET status = ?, updatedAt = CURRENT_TIMESTAMP WHERE id = ?`, status, emailID)
	return err
}

func (d *DB) MustEmailByProviderMessageID(provider, messageID string) (internal.EmailRow, error) {
	row, err := d.GetEmailByProviderMessageID(provider, messageID)
	if err != nil {
		return internal.EmailRow{}, err
	}
	if row == nil {
		return internal.EmailRow{}, fmt.Errorf("email not found: provider=%s messageId=%s", provider, messageID)
	}
	return *row, nil
}

func (d *DB) InsertRun(traceID string, emailID *int, timings map[string]float64, counts map[string]int) error {
	timingsJSON, _ := json.Marshal(timings)
	countsJSON, _ := json.Marshal(counts)
	_, err := d.conn.Exec(`INSERT INTO runs (traceId, emailId, timingsJson, countsJson) VALUES (?, ?, ?, ?)`, traceID, emailID, string(timingsJSON), string(countsJSON))
	return err
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}
