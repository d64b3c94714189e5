package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"reportdesk/internal/apierr"
	"reportdesk/internal/guard"
	"reportdesk/internal/reports"
	"reportdesk/internal/session"
	"reportdesk/internal/users"
)

// Dashboard is the report list. Every mutation refetches the list.
type Dashboard struct {
	app     *App
	Reports []reports.Report

	upload Control
	status Control
	remove Control
}

func (a *App) Dashboard(ctx context.Context) (*Dashboard, error) {
	if err := a.open(ctx, guard.ViewHome); err != nil {
		return nil, err
	}
	d := &Dashboard{app: a}
	return d, d.Reload(ctx)
}

func (d *Dashboard) Reload(ctx context.Context) error {
	list, err := d.app.Reports.List(ctx)
	if err != nil {
		return err
	}
	d.Reports = list
	return nil
}

func (d *Dashboard) find(id int64) (*reports.Report, error) {
	for i := range d.Reports {
		if d.Reports[i].ID == id {
			return &d.Reports[i], nil
		}
	}
	return nil, &apierr.Error{Kind: apierr.KindNotFound, Message: fmt.Sprintf("Report %d is not in your list", id)}
}

func (d *Dashboard) Upload(ctx context.Context, f UploadForm) (*reports.Report, error) {
	in, file, err := f.Open()
	if err != nil {
		return nil, err
	}
	if file != nil {
		defer file.Close()
	}
	var created *reports.Report
	err = d.upload.Run(func() error {
		var err error
		if created, err = d.app.Reports.Create(ctx, in); err != nil {
			return err
		}
		return d.Reload(ctx)
	})
	return created, err
}

// Advance moves report id to its next status.
func (d *Dashboard) Advance(ctx context.Context, id int64) (*reports.Report, error) {
	r, err := d.find(id)
	if err != nil {
		return nil, err
	}
	var updated *reports.Report
	err = d.status.Run(func() error {
		var err error
		if updated, err = d.app.Reports.Advance(ctx, r, nil); err != nil {
			return err
		}
		return d.Reload(ctx)
	})
	return updated, err
}

func (d *Dashboard) Delete(ctx context.Context, id int64) error {
	if _, err := d.find(id); err != nil {
		return err
	}
	return d.remove.Run(func() error {
		if err := d.app.Reports.Delete(ctx, id); err != nil {
			return err
		}
		return d.Reload(ctx)
	})
}

func (d *Dashboard) Render(w io.Writer) error {
	if len(d.Reports) == 0 {
		_, err := fmt.Fprintln(w, "No reports yet. Upload your first report to get started.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTYPE\tDATE\tSTATUS\tNEXT ACTION")
	for _, r := range d.Reports {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, OrDash(r.Name), r.Type.Label(), FormatDate(r.ReportDate.Time), FormatStatus(r.Status), ActionLabel(r.Status))
	}
	return tw.Flush()
}

// ReportDetail is a single report with its workflow controls.
type ReportDetail struct {
	app    *App
	Report *reports.Report

	status Control
	remove Control
}

func (a *App) ReportDetail(ctx context.Context, id int64) (*ReportDetail, error) {
	if err := a.open(ctx, guard.ReportView(id)); err != nil {
		return nil, err
	}
	d := &ReportDetail{app: a}
	return d, d.Reload(ctx, id)
}

func (d *ReportDetail) Reload(ctx context.Context, id int64) error {
	r, err := d.app.Reports.Get(ctx, id)
	if err != nil {
		return err
	}
	d.Report = r
	return nil
}

// Advance moves the report forward. summary is only sent when completing.
func (d *ReportDetail) Advance(ctx context.Context, summary string) error {
	next, ok := reports.Next(d.Report.Status)
	if !ok {
		return apierr.Validationf("Report %d is already %s", d.Report.ID, FormatStatus(d.Report.Status))
	}
	return d.SetStatus(ctx, next, summary)
}

func (d *ReportDetail) SetStatus(ctx context.Context, to reports.Status, summary string) error {
	var sum *string
	if to == reports.StatusCompleted && strings.TrimSpace(summary) != "" {
		sum = &summary
	}
	return d.status.Run(func() error {
		if _, err := d.app.Reports.Transition(ctx, d.Report, to, sum); err != nil {
			return err
		}
		return d.Reload(ctx, d.Report.ID)
	})
}

// Delete removes the report and sends the user back to the dashboard.
func (d *ReportDetail) Delete(ctx context.Context) error {
	return d.remove.Run(func() error {
		if err := d.app.Reports.Delete(ctx, d.Report.ID); err != nil {
			return err
		}
		d.app.Nav.Go(guard.ViewHome)
		return nil
	})
}

func (d *ReportDetail) Render(w io.Writer) error {
	r := d.Report
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Report\t%s\n", OrDash(r.Name))
	fmt.Fprintf(tw, "ID\t%d\n", r.ID)
	fmt.Fprintf(tw, "Type\t%s\n", r.Type.Label())
	fmt.Fprintf(tw, "Report date\t%s\n", FormatDate(r.ReportDate.Time))
	fmt.Fprintf(tw, "Status\t%s\n", FormatStatus(r.Status))
	fmt.Fprintf(tw, "File\t%s\n", OrDash(r.FilePath))
	fmt.Fprintf(tw, "Uploaded\t%s\n", FormatDateTime(r.CreatedAt.Time))
	fmt.Fprintf(tw, "Last updated\t%s\n", FormatDateTime(r.UpdatedAt.Time))
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Summary")
	switch {
	case r.Status != reports.StatusCompleted:
		fmt.Fprintln(w, "  Summary will be available once processing is complete.")
	case r.Summary == "":
		fmt.Fprintln(w, "  No summary available.")
	default:
		fmt.Fprintf(w, "  %s\n", r.Summary)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Workflow")
	step := reports.Step(r.Status)
	for i, s := range reports.Statuses {
		mark := " "
		switch {
		case i+1 < step:
			mark = "x"
		case i+1 == step:
			mark = ">"
		}
		fmt.Fprintf(w, "  [%s] %d. %s\n", mark, i+1, FormatStatus(s))
	}
	if action := ActionLabel(r.Status); action != missing {
		_, err := fmt.Fprintf(w, "\nNext action: %s\n", action)
		return err
	}
	return nil
}

// UserManagement lists accounts. The signed-in account cannot be deleted.
type UserManagement struct {
	app   *App
	Users []users.User
	Self  string

	create Control
	remove Control
}

func (a *App) UserManagement(ctx context.Context) (*UserManagement, error) {
	if err := a.open(ctx, guard.ViewUsers); err != nil {
		return nil, err
	}
	m := &UserManagement{app: a}
	if cur, ok := a.Sessions.Current(); ok {
		m.Self = cur.Email
	}
	return m, m.Reload(ctx)
}

func (m *UserManagement) Reload(ctx context.Context) error {
	list, err := m.app.Users.List(ctx)
	if err != nil {
		return err
	}
	m.Users = list
	return nil
}

func (m *UserManagement) Create(ctx context.Context, in users.CreateInput) (*users.User, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	var created *users.User
	err := m.create.Run(func() error {
		var err error
		if created, err = m.app.Users.Create(ctx, in); err != nil {
			return err
		}
		return m.Reload(ctx)
	})
	return created, err
}

// Delete removes user id. The email comes from the loaded list so the
// self-delete check holds without asking the server.
func (m *UserManagement) Delete(ctx context.Context, id int64) error {
	var email string
	for _, u := range m.Users {
		if u.ID == id {
			email = u.Email
			break
		}
	}
	if email == "" {
		return &apierr.Error{Kind: apierr.KindNotFound, Message: fmt.Sprintf("User %d not found", id)}
	}
	return m.remove.Run(func() error {
		if err := m.app.Users.Delete(ctx, id, email); err != nil {
			return err
		}
		return m.Reload(ctx)
	})
}

func (m *UserManagement) Render(w io.Writer) error {
	if len(m.Users) == 0 {
		_, err := fmt.Fprintln(w, "No users found.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tEMAIL\tROLE\tCREATED\t")
	for _, u := range m.Users {
		note := ""
		if strings.EqualFold(u.Email, m.Self) {
			note = "(you)"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", u.ID, u.Email, u.Role, FormatDate(u.CreatedAt.Time), note)
	}
	return tw.Flush()
}

// RenderSession prints the signed-in identity.
func RenderSession(w io.Writer, s *session.Session) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Email\t%s\n", s.Email)
	fmt.Fprintf(tw, "Role\t%s\n", s.Role)
	if s.UserID != 0 {
		fmt.Fprintf(tw, "User ID\t%d\n", s.UserID)
	}
	if !s.ExpiresAt.IsZero() {
		fmt.Fprintf(tw, "Expires\t%s\n", FormatDateTime(s.ExpiresAt.Local()))
	}
	return tw.Flush()
}
