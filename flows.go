package auth

import (
	"context"
	"sync"
)

// FlowStatus is where a flow is in its submit cycle
type FlowStatus string

const (
	FlowIdle      FlowStatus = "idle"
	FlowPending   FlowStatus = "pending"
	FlowSucceeded FlowStatus = "succeeded"
	FlowFailed    FlowStatus = "failed"
	FlowClosed    FlowStatus = "closed"
)

// Result is the outcome of a submit
type Result struct {
	Status   FlowStatus
	Message  string
	Redirect string
	Session  *Session
}

// FlowOption configures a flow
type FlowOption func(*flowState)

// WithNavigator sets where successful flows navigate to
func WithNavigator(n Navigator) FlowOption {
	return func(f *flowState) {
		if n != nil {
			f.navigator = n
		}
	}
}

// WithFlowLogger sets the flow logger
func WithFlowLogger(l Logger) FlowOption {
	return func(f *flowState) {
		f.logger = normalizeLogger(l)
	}
}

// WithFlowGuard sets the guard used to pick the landing route after login
func WithFlowGuard(g *AccessGuard) FlowOption {
	return func(f *flowState) {
		if g != nil {
			f.guard = g
		}
	}
}

// flowState holds what every flow shares: the pending flag, the last
// status and message, and whether the view is still mounted.
type flowState struct {
	name      string
	navigator Navigator
	logger    Logger
	guard     *AccessGuard

	mu      sync.Mutex
	pending bool
	closed  bool
	status  FlowStatus
	message string
}

func newFlowState(name string, opts ...FlowOption) *flowState {
	f := &flowState{
		name:      name,
		navigator: noopNavigator{},
		logger:    defLogger{},
		guard:     NewAccessGuard(),
		status:    FlowIdle,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Pending reports whether a submit is in flight
func (f *flowState) Pending() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending
}

// Status returns the last status
func (f *flowState) Status() FlowStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

// Message returns the last user visible message
func (f *flowState) Message() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.message
}

// Close marks the view as gone. Completions arriving afterwards change
// nothing.
func (f *flowState) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.status = FlowClosed
}

func (f *flowState) begin() (Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return Result{Status: FlowClosed}, ErrFlowClosed
	}

	if f.pending {
		return Result{Status: FlowPending}, ErrSubmissionPending
	}

	f.pending = true
	f.status = FlowPending
	f.message = ""
	return Result{Status: FlowPending}, nil
}

// complete records the outcome of a submit unless the flow was closed.
// effect runs for a successful outcome with the lock released, so session
// observers and the navigator may read the flow. retain updates the kept
// form under the lock with the final error.
func (f *flowState) complete(res Result, err error, effect func() error, retain func(error)) (Result, error) {
	if f.dropped() {
		return Result{Status: FlowClosed}, ErrFlowClosed
	}

	if err == nil && effect != nil {
		err = effect()
	}

	if err != nil {
		res = Result{Status: FlowFailed, Message: UserMessage(err)}
		f.logger.Debug("flow failed", "flow", f.name, "error", err)
	} else {
		res.Status = FlowSucceeded
	}

	f.mu.Lock()
	f.pending = false
	if f.closed {
		f.mu.Unlock()
		f.logger.Debug("flow completion dropped, view closed", "flow", f.name)
		return Result{Status: FlowClosed}, ErrFlowClosed
	}
	if retain != nil {
		retain(err)
	}
	f.status = res.Status
	f.message = res.Message
	f.mu.Unlock()

	if err == nil && res.Redirect != "" {
		f.navigator.Navigate(res.Redirect)
	}

	return res, err
}

func (f *flowState) dropped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		return false
	}
	f.pending = false
	f.logger.Debug("flow completion dropped, view closed", "flow", f.name)
	return true
}

// LoginFlow verifies credentials and logs the session in
type LoginFlow struct {
	*flowState
	verifier CredentialVerifier
	sessions *SessionContext
	form     LoginForm
}

// NewLoginFlow creates a login flow
func NewLoginFlow(verifier CredentialVerifier, sessions *SessionContext, opts ...FlowOption) *LoginFlow {
	return &LoginFlow{
		flowState: newFlowState("login", opts...),
		verifier:  verifier,
		sessions:  sessions,
	}
}

// Form returns the retained form. The secret is never retained.
func (f *LoginFlow) Form() LoginForm {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.form
}

// Submit validates the form, verifies the credentials and on success
// logs in and navigates to the role's home route
func (f *LoginFlow) Submit(ctx context.Context, form LoginForm) (Result, error) {
	if res, err := f.begin(); err != nil {
		return res, err
	}

	retained := LoginForm{Identifier: form.Identifier}
	keep := func(err error) {
		if err != nil {
			f.form = retained
			return
		}
		f.form = LoginForm{}
	}

	if err := form.Validate(); err != nil {
		return f.complete(Result{}, err, nil, keep)
	}

	session, err := f.verifier.Verify(ctx, form.Identifier, form.Secret)
	if err == nil && session == nil {
		err = NewTransportError(ErrIncompleteSession, "verify returned no session")
	}
	if err != nil {
		return f.complete(Result{}, err, nil, keep)
	}

	res := Result{
		Message:  MessageLoggedIn,
		Redirect: f.guard.HomeRoute(session),
		Session:  session.Clone(),
	}
	return f.complete(res, nil, func() error {
		return f.sessions.Login(ctx, *session)
	}, keep)
}

// SignupFlow registers an account and sends the user to the login page
type SignupFlow struct {
	*flowState
	registrar AccountRegistrar
	form      SignupForm
}

// NewSignupFlow creates a signup flow
func NewSignupFlow(registrar AccountRegistrar, opts ...FlowOption) *SignupFlow {
	return &SignupFlow{
		flowState: newFlowState("signup", opts...),
		registrar: registrar,
	}
}

// Form returns the retained form with secrets blanked
func (f *SignupFlow) Form() SignupForm {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.form
}

func (f *SignupFlow) Submit(ctx context.Context, form SignupForm) (Result, error) {
	if res, err := f.begin(); err != nil {
		return res, err
	}

	retained := form
	retained.Secret = ""
	retained.Confirmation = ""
	keep := func(err error) {
		if err != nil {
			f.form = retained
			return
		}
		f.form = SignupForm{}
	}

	if err := form.Validate(); err != nil {
		return f.complete(Result{}, err, nil, keep)
	}

	_, err := f.registrar.Register(ctx, form.Request())
	return f.complete(Result{
		Message:  MessageSignupComplete,
		Redirect: f.guard.login,
	}, err, nil, keep)
}

// ForgotPasswordFlow requests a reset link. The answer never reveals
// whether the email has an account.
type ForgotPasswordFlow struct {
	*flowState
	resetter PasswordResetter
	form     ForgotPasswordForm
}

// NewForgotPasswordFlow creates a forgot password flow
func NewForgotPasswordFlow(resetter PasswordResetter, opts ...FlowOption) *ForgotPasswordFlow {
	return &ForgotPasswordFlow{
		flowState: newFlowState("forgot_password", opts...),
		resetter:  resetter,
	}
}

func (f *ForgotPasswordFlow) Form() ForgotPasswordForm {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.form
}

func (f *ForgotPasswordFlow) Submit(ctx context.Context, form ForgotPasswordForm) (Result, error) {
	if res, err := f.begin(); err != nil {
		return res, err
	}

	keep := func(err error) {
		if err != nil {
			f.form = form
			return
		}
		f.form = ForgotPasswordForm{}
	}

	if err := form.Validate(); err != nil {
		return f.complete(Result{}, err, nil, keep)
	}

	err := f.resetter.RequestPasswordReset(ctx, NormalizeIdentifier(form.Email))
	if IsAccountNotFound(err) {
		err = nil
	}

	return f.complete(Result{
		Message:  MessageResetRequested,
		Redirect: f.guard.login,
	}, err, nil, keep)
}

// ResetPasswordFlow sets a new secret with the token from the reset link
type ResetPasswordFlow struct {
	*flowState
	resetter PasswordResetter
	form     ResetPasswordForm
}

// NewResetPasswordFlow creates a reset password flow
func NewResetPasswordFlow(resetter PasswordResetter, opts ...FlowOption) *ResetPasswordFlow {
	return &ResetPasswordFlow{
		flowState: newFlowState("reset_password", opts...),
		resetter:  resetter,
	}
}

func (f *ResetPasswordFlow) Form() ResetPasswordForm {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.form
}

func (f *ResetPasswordFlow) Submit(ctx context.Context, form ResetPasswordForm) (Result, error) {
	if res, err := f.begin(); err != nil {
		return res, err
	}

	retained := ResetPasswordForm{Token: form.Token}
	keep := func(err error) {
		if err != nil {
			f.form = retained
			return
		}
		f.form = ResetPasswordForm{}
	}

	if err := form.Validate(); err != nil {
		return f.complete(Result{}, err, nil, keep)
	}

	err := f.resetter.ResetPassword(ctx, form.Token, form.Secret)
	return f.complete(Result{
		Message:  MessageResetComplete,
		Redirect: f.guard.login,
	}, err, nil, keep)
}
