package web

import (
	"context"
	"errors"
	"net/http"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/shipbroker/internal/auth"
	"github.com/JonMunkholm/shipbroker/internal/core"
	"github.com/JonMunkholm/shipbroker/internal/logging"
	"github.com/JonMunkholm/shipbroker/internal/web/templates"
)

const afterSignIn = "/dashboard"

func (s *Server) handleSignInPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentUser(r); ok {
		http.Redirect(w, r, auth.SafeNext(r.URL.Query().Get("next"), afterSignIn), http.StatusSeeOther)
		return
	}
	s.render(w, r, http.StatusOK, templates.SignIn(s.page(r, "Sign in"), templates.Credentials{
		Next: auth.SafeNext(r.URL.Query().Get("next"), ""),
	}))
}

func (s *Server) handleSignUpPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, templates.SignUp(s.page(r, "Create an account"), templates.Credentials{
		Next: auth.SafeNext(r.URL.Query().Get("next"), ""),
	}))
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	s.credentials(w, r, s.auth.SignIn, templates.SignIn, "Sign in")
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	s.credentials(w, r, s.auth.SignUp, templates.SignUp, "Create an account")
}

type credentialsFunc func(ctx context.Context, email, password string) (auth.User, string, error)

// credentials runs a sign-in or sign-up attempt. Success starts a session
// and redirects to the requested local page.
func (s *Server) credentials(w http.ResponseWriter, r *http.Request, attempt credentialsFunc,
	page func(templates.Page, templates.Credentials) templ.Component, title string) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBody)
	if err := r.ParseForm(); err != nil {
		s.respondError(w, r, core.ErrInvalidValue, http.StatusBadRequest)
		return
	}

	c := templates.Credentials{
		Email: r.PostFormValue("email"),
		Next:  auth.SafeNext(r.PostFormValue("next"), ""),
	}

	user, token, err := attempt(r.Context(), c.Email, r.PostFormValue("password"))
	if err != nil {
		status, msg := authFailure(err)
		if status >= http.StatusInternalServerError {
			logging.FromContext(r.Context()).Error("authentication failed", "error", err)
		}
		c.Error = msg
		s.render(w, r, status, page(s.page(r, title), c))
		return
	}

	sess := s.sessions.Create(user, token)
	s.sessions.SetCookie(w, sess)
	logging.FromContext(r.Context()).Info("signed in", "user", user.Email)
	http.Redirect(w, r, auth.SafeNext(c.Next, afterSignIn), http.StatusSeeOther)
}

// authFailure maps an authenticator error to a status and a message safe
// to show.
func authFailure(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid email or password."
	case errors.Is(err, auth.ErrEmailTaken):
		return http.StatusConflict, "An account with this email already exists."
	case errors.Is(err, auth.ErrWeakPassword):
		return http.StatusUnprocessableEntity, "Password is too short."
	case errors.Is(err, auth.ErrInvalidEmail):
		return http.StatusUnprocessableEntity, "Please enter a valid email address."
	}
	return http.StatusBadGateway, core.MapError(err).Sentence()
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	s.sessions.SignOut(w, r)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
