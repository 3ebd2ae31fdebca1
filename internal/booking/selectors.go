package booking

import "github.com/example/appt-scheduler/internal/browser"

// Sign-in page.
var (
	emailField    = browser.CSS("#user_email", "input[type=email]")
	passwordField = browser.CSS("#user_password", "input[type=password]")
	policyBox     = browser.CSS(
		"#new_user > div.radio-checkbox-group.margin-top-30 > label > div",
		"#policy_confirmed",
	)
	signInButton = browser.CSS("#new_user input[type=submit]", "#new_user > p:nth-child(9) > input")
)

// Appointment form.
var (
	groupContinue  = browser.CSS("input[name=commit]")
	facilitySelect = browser.CSS("#appointments_consulate_appointment_facility_id")
	dateInput      = browser.CSS("#appointments_consulate_appointment_date")
	datePicker     = browser.CSS("#ui-datepicker-div")
	openDayCell    = browser.CSS(
		"#ui-datepicker-div .ui-datepicker-group-last td[data-handler=selectDay] > a",
		"#ui-datepicker-div > div.ui-datepicker-group.ui-datepicker-group-last > table > tbody > tr > td.undefined > a",
	)
	nextMonth = browser.CSS(
		"#ui-datepicker-div .ui-datepicker-group-last a.ui-datepicker-next",
		"#ui-datepicker-div > div.ui-datepicker-group.ui-datepicker-group-last > div > a > span",
	)
	timeSelect    = browser.CSS("#appointments_consulate_appointment_time")
	submitButton  = browser.CSS("#appointments_submit")
	confirmButton = browser.CSS("body > div.reveal-overlay > div > div > a.button.alert")
)

// Click offsets measured against the site's layout at the default viewport.
var (
	emailOffset     = browser.Point{X: 118, Y: 21.453125}
	policyOffset    = browser.Point{X: 9, Y: 16.34375}
	signInOffset    = browser.Point{X: 34, Y: 11.34375}
	dateInputOffset = browser.Point{X: 394.5, Y: 17.53125}
	nextOffset      = browser.Point{X: 4, Y: 9.03125}
	submitOffset    = browser.Point{X: 78.109375, Y: 20.0625}
)
