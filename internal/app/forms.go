package app

import (
	"os"
	"strings"

	"reportdesk/internal/apierr"
	"reportdesk/internal/reports"
	"reportdesk/internal/users"
)

type LoginForm struct {
	Email    string
	Password string
}

func (f LoginForm) Validate() error {
	if strings.TrimSpace(f.Email) == "" || f.Password == "" {
		return apierr.Validation("Email and password are required")
	}
	return nil
}

type RegisterForm struct {
	Email           string
	Password        string
	ConfirmPassword string
}

func (f RegisterForm) Validate() error {
	if strings.TrimSpace(f.Email) == "" || f.Password == "" {
		return apierr.Validation("Email and password are required")
	}
	if f.Password != f.ConfirmPassword {
		return apierr.Validation("Passwords do not match")
	}
	if len(f.Password) < users.MinPasswordLength {
		return apierr.Validationf("Password must be at least %d characters", users.MinPasswordLength)
	}
	return nil
}

// UploadForm describes a file on disk to upload. Name and ReportDate are
// optional.
type UploadForm struct {
	Path       string
	Name       string
	Type       string
	ReportDate string
}

// Open turns the form into a CreateInput. The caller closes the file.
func (f UploadForm) Open() (reports.CreateInput, *os.File, error) {
	in := reports.CreateInput{
		Name:       f.Name,
		Type:       reports.Type(strings.ToUpper(strings.TrimSpace(f.Type))),
		ReportDate: f.ReportDate,
	}
	if strings.TrimSpace(f.Path) == "" {
		return in, nil, nil
	}
	file, err := os.Open(f.Path)
	if err != nil {
		return in, nil, apierr.Validationf("Cannot open %s: %v", f.Path, err)
	}
	st, err := file.Stat()
	if err != nil || st.IsDir() {
		file.Close()
		return in, nil, apierr.Validationf("%s is not a regular file", f.Path)
	}
	in.File = file
	in.FileName = f.Path
	return in, file, nil
}
