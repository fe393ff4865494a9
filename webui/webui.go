// Package webui serves the MediMate web application: registration, login,
// schedule management, the per-schedule reminder view, and the assistant
// chat page.
package webui

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Srishyl/MediMate/chat"
	"github.com/Srishyl/MediMate/dblayer"
	"github.com/Srishyl/MediMate/dbtypes"
	"github.com/Srishyl/MediMate/livefeed"
	"github.com/Srishyl/MediMate/verify"
	"github.com/Srishyl/MediMate/webui/uitemplates"

	"github.com/golang/glog"
)

const sessionCookieName = "MediMate-Session"

type WebUI struct {
	db         *dblayer.DB
	chatClient *chat.Client
	verifier   verify.Verifier
	location   *time.Location
}

func New(db *dblayer.DB, chatClient *chat.Client, verifier verify.Verifier, location *time.Location) *WebUI {
	return &WebUI{
		db:         db,
		chatClient: chatClient,
		verifier:   verifier,
		location:   location,
	}
}

func (u *WebUI) Register(m *http.ServeMux) {
	m.HandleFunc("/", u.homeHandler)
	m.HandleFunc("/log-in", u.logInHandler)
	m.HandleFunc("/log-out", u.logOutHandler)
	m.HandleFunc("/register", u.registerHandler)
	m.HandleFunc("/list-schedules", u.listSchedulesHandler)
	m.HandleFunc("/create-schedule", u.createScheduleHandler)
	m.HandleFunc("/edit-schedule", u.editScheduleHandler)
	m.HandleFunc("/delete-schedule", u.deleteScheduleHandler)
	m.HandleFunc("/record-refill", u.recordRefillHandler)
	m.HandleFunc("/reminder", u.reminderHandler)
	m.HandleFunc("/record-intake", u.recordIntakeHandler)
	m.HandleFunc("/chat", u.chatHandler)
}

// getLoggedInUser loads the user associated with the session cookie in the
// request, if it exists.
func (u *WebUI) getLoggedInUser(ctx context.Context, r *http.Request) (*dbtypes.User, error) {
	var sessionCookie *http.Cookie
	for _, cookie := range r.Cookies() {
		if cookie.Name == sessionCookieName {
			sessionCookie = cookie
		}
	}
	if sessionCookie == nil {
		// No session cookie; user is not logged in.
		glog.Infof("No logged-in user because there was no session cookie.")
		return nil, nil
	}

	return u.db.UserFromSessionCookie(ctx, sessionCookie.Value)
}

func (u *WebUI) writePage(w http.ResponseWriter, page []byte, err error) {
	if err != nil {
		glog.Errorf("Error while rendering page: %v", err)
		http.Error(w, "Internal Error", http.StatusInternalServerError)
		return
	}

	if _, err := io.Copy(w, bytes.NewReader(page)); err != nil {
		// It's too late to write an error to the HTTP response.
		glog.Errorf("Error while writing output: %v", err)
		return
	}
}

// userErrorString maps dblayer validation sentinels to inline form messages.
// Anything else is an internal error.
func userErrorString(err error) string {
	for _, sentinel := range []error{
		dblayer.ErrNameMustNotBeEmpty,
		dblayer.ErrEmailMustNotBeEmpty,
		dblayer.ErrPasswordMustNotBeEmpty,
		dblayer.ErrEmailAlreadyRegistered,
		dblayer.ErrUnknownUserOrWrongPassword,
		dblayer.ErrPillNameMustNotBeEmpty,
		dblayer.ErrDosageMustNotBeEmpty,
		dblayer.ErrNoWeekdaySelected,
		dblayer.ErrUnknownWeekday,
		dblayer.ErrTotalPillsMustBePositive,
		dblayer.ErrExpiryDateRequired,
		dblayer.ErrCouldNotParseDate,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return ""
}

// homeHandler renders the dashboard: today's remaining medications for the
// logged-in user.
func (u *WebUI) homeHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	ctx := r.Context()

	params := &uitemplates.HomeParams{}

	user, err := u.getLoggedInUser(ctx, r)
	if err != nil {
		glog.Errorf("Error while getting logged-in user: %v", err)
		http.Error(w, "Internal Error", http.StatusInternalServerError)
		return
	}

	if user != nil {
		params.ActiveUser = uitemplates.ActiveUserParams{
			LoggedIn: true,
			Name:     user.Name,
			Email:    user.Email,
		}

		schedules, err := u.db.SchedulesForUser(ctx, user.ID)
		if err != nil {
			glog.Errorf("Error while listing schedules for user %s: %v", user.ID, err)
			http.Error(w, "Internal Error", http.StatusInternalServerError)
			return
		}

		history, err := u.db.HistoryForUser(ctx, user.ID)
		if err != nil {
			glog.Errorf("Error while listing history for user %s: %v", user.ID, err)
			http.Error(w, "Internal Error", http.StatusInternalServerError)
			return
		}

		for _, schedule := range livefeed.TodaysAgenda(schedules, history, time.Now(), u.location) {
			params.Agenda = append(params.Agenda, uitemplates.HomeAgendaItem{
				PillName:     schedule.PillName,
				Dosage:       schedule.Dosage,
				Time:         formatTime(schedule.TimeHour, schedule.TimeMinute),
				Color:        schedule.Color,
				Remaining:    fmt.Sprintf("%d of %d", schedule.RemainingPills, schedule.TotalPills),
				ReminderLink: ReminderLink(schedule.ID),
			})
		}
	}

	page, pageErr := uitemplates.HomePage(params)
	u.writePage(w, page, pageErr)
}

func formatTime(hour, minute int) string {
	period := "AM"
	if hour >= 12 {
		period = "PM"
	}
	display := hour % 12
	if display == 0 {
		display = 12
	}
	return fmt.Sprintf("%d:%02d %s", display, minute, period)
}

func (u *WebUI) logInHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/log-in" {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	ctx := r.Context()

	user, err := u.getLoggedInUser(ctx, r)
	if err != nil {
		glog.Errorf("Error while getting logged-in user: %v", err)
		http.Error(w, "Internal Error", http.StatusInternalServerError)
		return
	}

	if user != nil {
		// User is already logged in.  Send them back home.
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err != nil {
			glog.Errorf("Error while parsing form: %v", err)
			http.Error(w, "Internal Error", http.StatusInternalServerError)
			return
		}

		session, err := u.db.SessionFromPassword(ctx, r.PostForm.Get("email"), r.PostForm.Get("password"))
		if err != nil {
			if userErr := userErrorString(err); userErr != "" {
				page, pageErr := uitemplates.LogInPage(&uitemplates.LogInParams{UserError: userErr})
				u.writePage(w, page, pageErr)
				return
			}
			glog.Errorf("Error while processing log in form: %v", err)
			http.Error(w, "Internal Error", http.StatusInternalServerError)
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookieName,
			Value:    session.Cookie,
			SameSite: http.SameSiteStrictMode,
			Expires:  session.Expires,
		})
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	page, pageErr := uitemplates.LogInPage(&uitemplates.LogInParams{})
	u.writePage(w, page, pageErr)
}

func (u *WebUI) logOutHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/log-out" {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	ctx := r.Context()

	if r.Method == http.MethodPost {
		for _, cookie := range r.Cookies() {
			if cookie.Name != sessionCookieName {
				continue
			}
			if err := u.db.DeleteSession(ctx, cookie.Value); err != nil {
				glog.Errorf("Error while deleting session: %v", err)
				http.Error(w, "Internal Error", http.StatusInternalServerError)
				return
			}
		}

		http.SetCookie(w, &http.Cookie{
			Name:   sessionCookieName,
			Value:  "",
			MaxAge: -1,
		})
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	page, pageErr := uitemplates.LogOutPage(&uitemplates.LogOutParams{})
	u.writePage(w, page, pageErr)
}

func (u *WebUI) registerHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/register" {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	ctx := r.Context()

	user, err := u.getLoggedInUser(ctx, r)
	if err != nil {
		glog.Errorf("Error while getting logged-in user: %v", err)
		http.Error(w, "Internal Error", http.StatusInternalServerError)
		return
	}

	if user != nil {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err != nil {
			glog.Errorf("Error while parsing form: %v", err)
			http.Error(w, "Internal Error", http.StatusInternalServerError)
			return
		}

		_, err := u.db.RegisterUser(ctx, r.PostForm.Get("name"), r.PostForm.Get("email"), r.PostForm.Get("password"))
		if err != nil {
			if userErr := userErrorString(err); userErr != "" {
				page, pageErr := uitemplates.RegisterPage(&uitemplates.RegisterParams{UserError: userErr})
				u.writePage(w, page, pageErr)
				return
			}
			glog.Errorf("Error while registering user: %v", err)
			http.Error(w, "Internal Error", http.StatusInternalServerError)
			return
		}

		// Log the new user straight in.
		session, err := u.db.SessionFromPassword(ctx, r.PostForm.Get("email"), r.PostForm.Get("password"))
		if err != nil {
			glog.Errorf("Error while creating session for new user: %v", err)
			http.Redirect(w, r, "/log-in", http.StatusFound)
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookieName,
			Value:    session.Cookie,
			SameSite: http.SameSiteStrictMode,
			Expires:  session.Expires,
		})
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	page, pageErr := uitemplates.RegisterPage(&uitemplates.RegisterParams{})
	u.writePage(w, page, pageErr)
}

func (u *WebUI) listSchedulesHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/list-schedules" {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	ctx := r.Context()

	user, err := u.getLoggedInUser(ctx, r)
	if err != nil {
		glog.Errorf("Error while getting logged-in user: %v", err)
		http.Error(w, "Internal Error", http.StatusInternalServerError)
		return
	}

	if user == nil {
		http.Redirect(w, r, "/log-in", http.StatusFound)
		return
	}

	schedules, err := u.db.SchedulesForUser(ctx, user.ID)
	if err != nil {
		glog.Errorf("Error while listing schedules for user %s: %v", user.ID, err)
		http.Error(w, "Internal Error", http.StatusInternalServerError)
		return
	}

	params := &uitemplates.ListSchedulesParams{}
	for _, schedule := range schedules {
		days := ""
		for i, day := range schedule.DaysOfWeek {
			if i > 0 {
				days += ", "
			}
			days += day[:3]
		}

		params.Schedules = append(params.Schedules, uitemplates.ListSchedulesSchedule{
			PillName:         schedule.PillName,
			Dosage:           schedule.Dosage,
			Time:             formatTime(schedule.TimeHour, schedule.TimeMinute),
			Days:             days,
			Remaining:        fmt.Sprintf("%d of %d", schedule.RemainingPills, schedule.TotalPills),
			ExpiryDate:       schedule.ExpiryDate,
			Active:           schedule.Active,
			EditLink:         editScheduleLink(schedule.ID, ""),
			DeleteLink:       deleteScheduleLink(schedule.ID),
			RecordRefillLink: recordRefillLink(schedule.ID, ""),
		})
	}

	page, pageErr := uitemplates.ListSchedulesPage(params)
	u.writePage(w, page, pageErr)
}

// ReminderLink builds the per-schedule reminder view URL.
func ReminderLink(id string) string {
	q := url.Values{}
	q.Add("id", id)
	link := &url.URL{
		Path:     "/reminder",
		RawQuery: q.Encode(),
	}
	return link.String()
}

func editScheduleLink(id, userError string) string {
	q := url.Values{}
	q.Add("id", id)
	if userError != "" {
		q.Add("user-error", userError)
	}
	link := &url.URL{
		Path:     "/edit-schedule",
		RawQuery: q.Encode(),
	}
	return link.String()
}

func deleteScheduleLink(id string) string {
	q := url.Values{}
	q.Add("id", id)
	link := &url.URL{
		Path:     "/delete-schedule",
		RawQuery: q.Encode(),
	}
	return link.String()
}

func recordRefillLink(id, userError string) string {
	q := url.Values{}
	q.Add("id", id)
	if userError != "" {
		q.Add("user-error", userError)
	}
	link := &url.URL{
		Path:     "/record-refill",
		RawQuery: q.Encode(),
	}
	return link.String()
}

func recordIntakeLink(id, mode string) string {
	q := url.Values{}
	q.Add("id", id)
	q.Add("mode", mode)
	link := &url.URL{
		Path:     "/record-intake",
		RawQuery: q.Encode(),
	}
	return link.String()
}

// scheduleFromForm assembles a schedule from the create/edit form fields.
// Field-level validation happens in dblayer before any write.
func scheduleFromForm(form url.Values) *dbtypes.Schedule {
	timeHour, _ := strconv.Atoi(form.Get("time-hour"))
	timeMinute, _ := strconv.Atoi(form.Get("time-minute"))
	totalPills, _ := strconv.ParseInt(form.Get("total-pills"), 10, 64)

	return &dbtypes.Schedule{
		PillName:   form.Get("pill-name"),
		Dosage:     form.Get("dosage"),
		TimeOfDay:  form.Get("time-of-day"),
		TimeHour:   timeHour,
		TimeMinute: timeMinute,
		DaysOfWeek: form["days"],
		Color:      form.Get("color"),
		TotalPills: totalPills,
		ExpiryDate: form.Get("expiry-date"),
	}
}

func (u *WebUI) createScheduleHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/create-schedule" {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	ctx := r.Context()

	user, err := u.getLoggedInUser(ctx, r)
	if err != nil {
		glog.Errorf("Error while getting logged-in user: %v", err)
		http.Error(w, "Internal Error", http.StatusInternalServerError)
		return
	}

	if user == nil {
		http.Redirect(w, r, "/log-in", http.StatusFound)
		return
	}

	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err != nil {
			glog.Errorf("Error while parsing form: %v", err)
			http.Error(w, "Internal Error", http.StatusInternalServerError)
			return
		}

		schedule := scheduleFromForm(r.PostForm)
		if _, err := u.db.CreateSchedule(ctx, user.ID, schedule); err != nil {
			if userErr := userErrorString(err); userErr != "" {
				page, pageErr := uitemplates.EditSchedulePage(editScheduleParams(schedule, "", userErr))
				u.writePage(w, page, pageErr)
				return
			}
			glog.Errorf("Error while creating schedule: %v", err)
			http.Error(w, "Internal Error", http.StatusInternalServerError)
			return
		}

		http.Redirect(w, r, "/list-schedules", http.StatusFound)
		return
	}

	page, pageErr := uitemplates.EditSchedulePage(&uitemplates.EditScheduleParams{
		SelfLink:  "/create-schedule",
		TimeOfDay: "morning",
		Color:     "#3b82f6",
	})
	u.writePage(w, page, pageErr)
}

func editScheduleParams(schedule *dbtypes.Schedule, id, userError string) *uitemplates.EditScheduleParams {
	days := map[string]bool{}
	for _, day := range schedule.DaysOfWeek {
		days[day] = true
	}

	selfLink := "/create-schedule"
	if id != "" {
		selfLink = editScheduleLink(id, "")
	}

	return &uitemplates.EditScheduleParams{
		ScheduleID: id,
		SelfLink:   selfLink,
		UserError:  userError,
		PillName:   schedule.PillName,
		Dosage:     schedule.Dosage,
		TimeOfDay:  schedule.TimeOfDay,
		TimeHour:   schedule.TimeHour,
		TimeMinute: schedule.TimeMinute,
		Days:       days,
		Color:      schedule.Color,
		TotalPills: schedule.TotalPills,
		ExpiryDate: schedule.ExpiryDate,
		Active:     schedule.Active,
	}
}

func (u *WebUI) editScheduleHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/edit-schedule" {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	ctx := r.Context()

	user, err := u.getLoggedInUser(ctx, r)
	if err != nil {
		glog.Errorf("Error while getting logged-in user: %v", err)
		http.Error(w, "Internal Error", http.StatusInternalServerError)
		return
	}

	if user == nil {
		http.Redirect(w, r, "/log-in", http.StatusFound)
		return
	}

	if err := r.ParseForm(); err != nil {
		glog.Errorf("Error while parsing form: %v", err)
		http.Error(w, "Internal Error", http.StatusInternalServerError)
		return
	}

	id := r.Form.Get("id")

	if r.Method == http.MethodPost {
		schedule := scheduleFromForm(r.PostForm)
		schedule.Active = r.PostForm.Get("active") == "on"

		if err := u.db.UpdateSchedule(ctx, user, id, schedule); err != nil {
			if userErr := userErrorString(err); userErr != "" {
				page, pageErr := uitemplates.EditSchedulePage(editScheduleParams(schedule, id, userErr))
				u.writePage(w, page, pageErr)
				return
			}
			glog.Errorf("Error while updating schedule %s: %v", id, err)
			http.Error(w, "Internal Error", http.StatusInternalServerError)
			return
		}

		http.Redirect(w, r, "/list-schedules", http.StatusFound)
		return
	}

	schedule, err := u.db.GetSchedule(ctx, id)
	if err != nil {
		if errors.Is(err, dblayer.ErrScheduleNotFound) {
			http.Error(w, "Not Found", http.StatusNotFound)
			return
		}
		glog.Errorf("Error while retrieving schedule %s: %v", id, err)
		http.Error(w, "Internal Error", http.StatusInternalServerError)
		return
	}

	if schedule.UserID != user.ID {
		glog.Errorf("User %s is not allowed to edit schedule %s", user.ID, id)
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	page, pageErr := uitemplates.EditSchedulePage(editScheduleParams(schedule, id, r.Form.Get("user-error")))
	u.writePage(w, page, pageErr)
}

func (u *WebUI) deleteScheduleHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/delete-schedule" {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	user, err := u.getLoggedInUser(ctx, r)
	if err != nil {
		glog.Errorf("Error while getting logged-in user: %v", err)
		http.Error(w, "Internal Error", http.StatusInternalServerError)
		return
	}

	if user == nil {
		http.Redirect(w, r, "/log-in", http.StatusFound)
		return
	}

	if err := r.ParseForm(); err != nil {
		glog.Errorf("Error while parsing form: %v", err)
		http.Error(w, "Internal Error", http.StatusInternalServerError)
		return
	}

	id := r.Form.Get("id")
	if err := u.db.DeleteSchedule(ctx, user, id); err != nil {
		glog.Errorf("Error while deleting schedule %s: %v", id, err)
		http.Error(w, "Internal Error", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/list-schedules", http.StatusFound)
}

func (u *WebUI) recordRefillHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/record-refill" {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	ctx := r.Context()

	user, err := u.getLoggedInUser(ctx, r)
	if err != nil {
		glog.Errorf("Error while getting logged-in user: %v", err)
		http.Error(w, "Internal Error", http.StatusInternalServerError)
		return
	}

	if user == nil {
		http.Redirect(w, r, "/log-in", http.StatusFound)
		return
	}

	if err := r.ParseForm(); err != nil {
		glog.Errorf("Error while parsing form: %v", err)
		http.Error(w, "Internal Error", http.StatusInternalServerError)
		return
	}

	id := r.Form.Get("id")

	if r.Method == http.MethodPost {
		err := u.db.RecordRefill(ctx, user, id, r.PostForm.Get("refill-date"))
		if err != nil {
			if userErr := userErrorString(err); userErr != "" {
				http.Redirect(w, r, recordRefillLink(id, userErr), http.StatusFound)
				return
			}
			glog.Errorf("Error while recording refill for schedule %s: %v", id, err)
			http.Error(w, "Internal Error", http.StatusInternalServerError)
			return
		}

		http.Redirect(w, r, "/list-schedules", http.StatusFound)
		return
	}

	schedule, err := u.db.GetSchedule(ctx, id)
	if err != nil {
		if errors.Is(err, dblayer.ErrScheduleNotFound) {
			http.Error(w, "Not Found", http.StatusNotFound)
			return
		}
		glog.Errorf("Error while retrieving schedule %s: %v", id, err)
		http.Error(w, "Internal Error", http.StatusInternalServerError)
		return
	}

	page, pageErr := uitemplates.RecordRefillPage(&uitemplates.RecordRefillParams{
		ScheduleID: id,
		PillName:   schedule.PillName,
		SelfLink:   recordRefillLink(id, ""),
		UserError:  r.Form.Get("user-error"),
	})
	u.writePage(w, page, pageErr)
}

// reminderHandler renders the per-schedule reminder view.
func (u *WebUI) reminderHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/reminder" {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	ctx := r.Context()

	user, err := u.getLoggedInUser(ctx, r)
	if err != nil {
		glog.Errorf("Error while getting logged-in user: %v", err)
		http.Error(w, "Internal Error", http.StatusInternalServerError)
		return
	}

	if user == nil {
		http.Redirect(w, r, "/log-in", http.StatusFound)
		return
	}

	if err := r.ParseForm(); err != nil {
		glog.Errorf("Error while parsing form: %v", err)
		http.Error(w, "Internal Error", http.StatusInternalServerError)
		return
	}

	id := r.Form.Get("id")

	schedule, err := u.db.GetSchedule(ctx, id)
	if err != nil {
		if errors.Is(err, dblayer.ErrScheduleNotFound) {
			// Schedule is gone; send the user back to the dashboard.
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}
		glog.Errorf("Error while retrieving schedule %s: %v", id, err)
		http.Error(w, "Internal Error", http.StatusInternalServerError)
		return
	}

	if schedule.UserID != user.ID {
		glog.Errorf("User %s is not allowed to view schedule %s", user.ID, id)
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	page, pageErr := uitemplates.ReminderPage(&uitemplates.ReminderParams{
		ScheduleID:       id,
		PillName:         schedule.PillName,
		Dosage:           schedule.Dosage,
		Time:             formatTime(schedule.TimeHour, schedule.TimeMinute),
		Color:            schedule.Color,
		Recorded:         r.Form.Get("recorded") == "1",
		UserError:        r.Form.Get("user-error"),
		RecordManualLink: recordIntakeLink(id, "manual"),
		RecordCameraLink: recordIntakeLink(id, "camera"),
	})
	u.writePage(w, page, pageErr)
}

// recordIntakeHandler records a pill intake, optionally running the camera
// verifier first.  The reminder flow keeps its state machine; the handler
// drives it through a single POST.
func (u *WebUI) recordIntakeHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/record-intake" {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	user, err := u.getLoggedInUser(ctx, r)
	if err != nil {
		glog.Errorf("Error while getting logged-in user: %v", err)
		http.Error(w, "Internal Error", http.StatusInternalServerError)
		return
	}

	if user == nil {
		http.Redirect(w, r, "/log-in", http.StatusFound)
		return
	}

	if err := r.ParseForm(); err != nil {
		glog.Errorf("Error while parsing form: %v", err)
		http.Error(w, "Internal Error", http.StatusInternalServerError)
		return
	}

	id := r.Form.Get("id")

	schedule, err := u.db.GetSchedule(ctx, id)
	if err != nil {
		if errors.Is(err, dblayer.ErrScheduleNotFound) {
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}
		glog.Errorf("Error while retrieving schedule %s: %v", id, err)
		http.Error(w, "Internal Error", http.StatusInternalServerError)
		return
	}

	if schedule.UserID != user.ID {
		glog.Errorf("User %s is not allowed to record intake for schedule %s", user.ID, id)
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	flow := verify.NewFlow(id, u.db, u.verifier, verify.NopAlarm{})
	flow.Begin()

	switch r.Form.Get("mode") {
	case "camera":
		err = flow.TakePillVerified(ctx)
	default:
		err = flow.TakePillManual(ctx)
	}
	if err != nil {
		glog.Errorf("Error while recording intake for schedule %s: %v", id, err)
		q := url.Values{}
		q.Add("id", id)
		q.Add("user-error", "Could not record your pill. Please try again.")
		http.Redirect(w, r, "/reminder?"+q.Encode(), http.StatusFound)
		return
	}

	q := url.Values{}
	q.Add("id", id)
	q.Add("recorded", "1")
	http.Redirect(w, r, "/reminder?"+q.Encode(), http.StatusFound)
}

func (u *WebUI) chatHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/chat" {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	ctx := r.Context()

	user, err := u.getLoggedInUser(ctx, r)
	if err != nil {
		glog.Errorf("Error while getting logged-in user: %v", err)
		http.Error(w, "Internal Error", http.StatusInternalServerError)
		return
	}

	if user == nil {
		http.Redirect(w, r, "/log-in", http.StatusFound)
		return
	}

	params := &uitemplates.ChatParams{
		Online: u.chatClient != nil,
	}

	if r.Method == http.MethodPost && u.chatClient != nil {
		if err := r.ParseForm(); err != nil {
			glog.Errorf("Error while parsing form: %v", err)
			http.Error(w, "Internal Error", http.StatusInternalServerError)
			return
		}

		message := r.PostForm.Get("message")
		if message != "" {
			params.Messages = append(params.Messages, uitemplates.ChatMessage{FromUser: true, Text: message})

			answer, err := u.chatClient.Ask(ctx, message)
			if err != nil {
				// Chat failures are recoverable in-UI errors, never 500s.
				glog.Errorf("Error while calling assistant: %v", err)
				params.UserError = "An error occurred. Please check your connection and try again."
			} else {
				params.Messages = append(params.Messages, uitemplates.ChatMessage{FromUser: false, Text: answer})
			}
		}
	}

	page, pageErr := uitemplates.ChatPage(params)
	u.writePage(w, page, pageErr)
}
