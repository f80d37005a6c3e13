package auth

// ClaimsDecorator can add extension data to session claims before a token is
// signed. Identity and registered claims are restored after Decorate runs, so
// a decorator can only touch Metadata.
type ClaimsDecorator interface {
	Decorate(account *Account, claims *SessionClaims) error
}

// ClaimsDecoratorFunc adapts a function into a ClaimsDecorator.
type ClaimsDecoratorFunc func(account *Account, claims *SessionClaims) error

// Decorate satisfies the ClaimsDecorator interface.
func (f ClaimsDecoratorFunc) Decorate(account *Account, claims *SessionClaims) error {
	if f == nil {
		return nil
	}
	return f(account, claims)
}

type noopClaimsDecorator struct{}

func (noopClaimsDecorator) Decorate(*Account, *SessionClaims) error {
	return nil
}

func normalizeClaimsDecorator(d ClaimsDecorator) ClaimsDecorator {
	if d == nil {
		return noopClaimsDecorator{}
	}
	return d
}

// decorateClaims runs d and puts back everything but Metadata
func decorateClaims(d ClaimsDecorator, account *Account, claims *SessionClaims) error {
	protected := *claims
	if err := d.Decorate(account, claims); err != nil {
		return err
	}

	metadata := claims.Metadata
	*claims = protected
	claims.Metadata = metadata
	return nil
}
