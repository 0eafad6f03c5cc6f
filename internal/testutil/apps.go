package testutil

import (
	"encoding/json"
	"fmt"
	"time"
)

// ReactDelay is how long the demo apps take to render validation output.
const ReactDelay = 30 * time.Millisecond

// APIBase is the backend origin the demo apps call.
const APIBase = "http://localhost:5000"

// DemoApps returns the login, registration, flashcard editor and sub-lesson
// editor pages.
func DemoApps() map[string]App {
	return map[string]App{
		"/auth/login":                LoginApp,
		"/register":                  RegisterApp,
		"/admin/activities/flashcard": FlashcardApp,
		"/admin/Lesson":              SubLessonApp,
	}
}

// Input returns a text input named name.
func Input(name, typ string) *Element {
	return &Element{
		Match: []string{fmt.Sprintf("input[name='%s']", name), "#" + name},
		Role:  "textbox",
		Attrs: map[string]string{"name": name, "type": typ},
	}
}

// Button returns a button labelled text.
func Button(css, text string, onClick func(p *FakePage)) *Element {
	return &Element{
		Match:   []string{css},
		Role:    "button",
		Text:    text,
		Attrs:   map[string]string{"type": "button"},
		OnClick: onClick,
	}
}

// valueOf reads the value of the first element answering to css.
func (p *FakePage) valueOf(css string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, el := range p.elements {
		for _, m := range el.Match {
			if m == css {
				return el.Value
			}
		}
	}
	return ""
}

// showErrors replaces the page's validation messages with msgs.
func (p *FakePage) showErrors(msgs []string) {
	for _, old := range p.all(".error") {
		p.Remove(old)
	}
	for _, msg := range msgs {
		p.Add(&Element{Match: []string{".error"}, Role: "alert", Text: msg})
	}
}

func (p *FakePage) all(css string) []*Element {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*Element
	for _, el := range p.elements {
		for _, m := range el.Match {
			if m == css {
				out = append(out, el)
				break
			}
		}
	}
	return out
}

// LoginApp renders the sign-in form. The visibility toggle flips the
// password input between type=password and type=text.
func LoginApp(p *FakePage) {
	p.Add(Input("email", "email"))
	password := p.Add(Input("password", "password"))
	toggle := Button("button[aria-label='toggle password visibility']", "", func(p *FakePage) {
		p.Update(func() {
			if password.Attrs["type"] == "password" {
				password.Attrs["type"] = "text"
			} else {
				password.Attrs["type"] = "password"
			}
		})
	})
	toggle.Attrs["aria-label"] = "toggle password visibility"
	p.Add(toggle)

	submit := Button("button[type='submit']", "Sign In", func(p *FakePage) {
		email := p.valueOf("input[name='email']")
		pass := p.valueOf("input[name='password']")
		var msgs []string
		if email == "" {
			msgs = append(msgs, "Email is required")
		}
		if pass == "" {
			msgs = append(msgs, "Password is required")
		}
		if len(msgs) > 0 {
			p.Later(ReactDelay, func() { p.showErrors(msgs) })
			return
		}
		go func() {
			resp, err := p.Fetch("POST", APIBase+"/auth/login")
			if err != nil || resp.Status >= 300 {
				p.showErrors([]string{"Invalid credentials"})
				return
			}
			p.Add(&Element{Match: []string{".welcome"}, Text: "Welcome back"})
		}()
	})
	submit.Attrs["type"] = "submit"
	p.Add(submit)
}

// RegisterApp renders the sign-up form.
func RegisterApp(p *FakePage) {
	p.Add(Input("email", "email"))
	p.Add(Input("username", "text"))
	p.Add(Input("password", "password"))
	p.Add(Input("confirmPassword", "password"))

	submit := Button("button[type='submit']", "Register", func(p *FakePage) {
		fields := []struct{ css, label string }{
			{"input[name='email']", "Email"},
			{"input[name='username']", "Username"},
			{"input[name='password']", "Password"},
			{"input[name='confirmPassword']", "Confirm Password"},
		}
		var msgs []string
		for _, f := range fields {
			if p.valueOf(f.css) == "" {
				msgs = append(msgs, f.label+" is required")
			}
		}
		pass, confirm := p.valueOf("input[name='password']"), p.valueOf("input[name='confirmPassword']")
		if pass != "" && confirm != "" && pass != confirm {
			msgs = append(msgs, "Passwords do not match")
		}
		if len(msgs) > 0 {
			p.Later(ReactDelay, func() { p.showErrors(msgs) })
			return
		}
		go func() {
			resp, err := p.Fetch("POST", APIBase+"/auth/register")
			if err != nil || resp.Status >= 300 {
				p.showErrors([]string{"Registration failed"})
				return
			}
			p.Add(&Element{Match: []string{".success"}, Text: "Registration successful"})
		}()
	})
	submit.Attrs["type"] = "submit"
	p.Add(submit)
}

// FlashcardApp renders the flashcard set editor. It loads the language
// list from the backend and starts with one card form.
func FlashcardApp(p *FakePage) {
	p.Add(Input("title", "text"))
	p.Add(&Element{Match: []string{"select[name='language']"}, Role: "combobox", Attrs: map[string]string{"name": "language"}})
	go p.loadOptions("/preferred-language/preferredlanguages", "language", "name")

	cards := 0
	addCard := func(p *FakePage) {
		cards++
		n := cards
		p.Add(&Element{
			Match: []string{".card-form", fmt.Sprintf(":nth-match(.card-form, %d)", n)},
			Attrs: map[string]string{"class": "card-form"},
		})
		for _, field := range []string{"front", "back", "hint", "example"} {
			in := Input(field, "text")
			in.Match = append(in.Match, fmt.Sprintf(":nth-match(.card-form, %d) input[name='%s']", n, field))
			p.Add(in)
		}
	}
	addCard(p)

	p.Add(Button("button.add-card", "Add Card", func(p *FakePage) {
		p.Later(ReactDelay, func() { addCard(p) })
	}))
}

// SubLessonApp renders the sub-lesson editor with video and quiz pickers.
func SubLessonApp(p *FakePage) {
	p.Add(Input("title", "text"))
	p.Add(&Element{Match: []string{"select[name='video']"}, Role: "combobox", Attrs: map[string]string{"name": "video"}})
	p.Add(&Element{Match: []string{"select[name='quiz']"}, Role: "combobox", Attrs: map[string]string{"name": "quiz"}})
	go func() {
		p.loadOptions("/video/video", "video", "title")
		p.loadOptions("/quiz/quiz", "quiz", "title")
	}()

	p.Add(Button("button.save", "Save Sub-Lesson", func(p *FakePage) {
		if p.valueOf("input[name='title']") == "" {
			p.Later(ReactDelay, func() { p.showErrors([]string{"Title is required"}) })
			return
		}
		go func() {
			resp, err := p.Fetch("POST", APIBase+"/sub-lesson/sub-lesson")
			if err != nil || resp.Status >= 300 {
				p.showErrors([]string{"Failed to save sub-lesson"})
				return
			}
			p.Add(&Element{Match: []string{".success"}, Text: "Sub-lesson saved"})
		}()
	}))
}

// loadOptions fetches path and fills select[name=field] with one option
// per record, labelled by the record's label key.
func (p *FakePage) loadOptions(path, field, label string) {
	resp, err := p.Fetch("GET", APIBase+path)
	if err != nil {
		p.showErrors([]string{"Failed to load " + field + " options"})
		return
	}
	var records []map[string]any
	if err := json.Unmarshal(resp.Body, &records); err != nil {
		p.showErrors([]string{"Failed to load " + field + " options"})
		return
	}
	sel := p.Find(fmt.Sprintf("select[name='%s']", field))
	for _, r := range records {
		text, _ := r[label].(string)
		id, _ := r["_id"].(string)
		if sel != nil {
			p.Update(func() { sel.Options = append(sel.Options, text) })
		}
		p.Add(&Element{
			Match: []string{fmt.Sprintf("select[name='%s'] option", field)},
			Role:  "option",
			Text:  text,
			Attrs: map[string]string{"value": id},
		})
	}
}
