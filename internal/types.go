package internal

type ScanSource string

const (
	SourceScanner   ScanSource = "scanner"
	SourceAPI       ScanSource = "api"
	SourceText      ScanSource = "text"
	SourceEmailText ScanSource = "email_text"
	SourceEmailHTML ScanSource = "email_html"
	SourceTXT       ScanSource = "txt"
	SourcePDF       ScanSource = "pdf"
	SourceXLSX      ScanSource = "xlsx"
)

type ScanStatus string

const (
	ScanReady     ScanStatus = "ready"
	ScanReview    ScanStatus = "review"
	ScanKnown     ScanStatus = "known"
	ScanRejected  ScanStatus = "rejected"
	ScanSubmitted ScanStatus = "submitted"
	ScanDuplicate ScanStatus = "duplicate"
)

const StatusActive = "Active"

type StudentRecord struct {
	ID               *int   `json:"id,omitempty"`
	Name             string `json:"name"`
	Email            string `json:"email"`
	Phone            string `json:"phone"`
	LicenseNumber    string `json:"license_number"`
	DateOfBirth      string `json:"date_of_birth"`
	Address          string `json:"address"`
	EmergencyContact string `json:"emergency_contact"`
	EmergencyPhone   string `json:"emergency_phone"`
	Status           string `json:"status"`
	LessonsCompleted int    `json:"lessons_completed"`
	InstructorID     *int   `json:"instructor_id"`
}

type LicenseRaw struct {
	FirstName     string `json:"first_name"`
	MiddleName    string `json:"middle_name"`
	LastName      string `json:"last_name"`
	Street        string `json:"street"`
	City          string `json:"city"`
	State         string `json:"state"`
	PostalCode    string `json:"postal_code"`
	LicenseNumber string `json:"license_number"`
	DOB           string `json:"dob"`
	IssueDate     string `json:"issue_date"`
	ExpiryDate    string `json:"expiry_date"`
	Height        string `json:"height"`
	LicenseClass  string `json:"license_class"`
	Country       string `json:"country"`
}

type MatchStatus string

type MatchReason string

const (
	MatchOK       MatchStatus = "OK"
	MatchReview   MatchStatus = "REVIEW"
	MatchNotFound MatchStatus = "NOT_FOUND"

	ReasonLicense MatchReason = "LICENSE"
	ReasonName    MatchReason = "NAME"
	ReasonNone    MatchReason = "NONE"
)

type MatchCandidate struct {
	ID            int     `json:"id"`
	Name          string  `json:"name"`
	LicenseNumber string  `json:"licenseNumber"`
	Score         float64 `json:"score"`
}

type MatchResult struct {
	Status     MatchStatus      `json:"status"`
	Confidence float64          `json:"confidence"`
	Reason     MatchReason      `json:"reason"`
	Student    *StudentRecord   `json:"student"`
	Candidates []MatchCandidate `json:"candidates"`
}

type ScanRow struct {
	ID              string            `json:"id"`
	Source          ScanSource        `json:"source"`
	Ref             string            `json:"ref"`
	EmailID         *int              `json:"emailId,omitempty"`
	RawText         string            `json:"rawText"`
	Status          ScanStatus        `json:"status"`
	Fields          map[string]string `json:"fields"`
	Student         StudentRecord     `json:"student"`
	LicenseRaw      LicenseRaw        `json:"licenseRaw"`
	Match           MatchResult       `json:"match"`
	RemoteStudentID *int              `json:"remoteStudentId,omitempty"`
	CreatedAt       string            `json:"createdAt"`
}

type EmailRow struct {
	ID         int
	Provider   string
	MessageID  string
	Subject    string
	Sender     string
	ReceivedAt string
	Hash       string
	Status     string
	RawRef     string
}

type FetchedMailMessage struct {
	Provider   string
	MessageID  string
	Subject    string
	From       string
	ReceivedAt string
	Raw        []byte
}
