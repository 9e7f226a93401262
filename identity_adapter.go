package auth

// UserIdentity adapts a User into the Identity interface for token generation.
type UserIdentity struct {
	user *User
}

// NewIdentityFromUser returns an Identity adapter for the provided user.
func NewIdentityFromUser(user *User) Identity {
	if user == nil {
		return nil
	}
	return UserIdentity{user: user}
}

// ID returns the user's ID as a string.
func (u UserIdentity) ID() string {
	if u.user == nil {
		return ""
	}
	return u.user.ID.String()
}

// Name returns the user's display name.
func (u UserIdentity) Name() string {
	if u.user == nil {
		return ""
	}
	return u.user.Name
}

// Email returns the user's normalized email address.
func (u UserIdentity) Email() string {
	if u.user == nil {
		return ""
	}
	return u.user.Email
}

// Phone returns the user's phone number.
func (u UserIdentity) Phone() string {
	if u.user == nil {
		return ""
	}
	return u.user.Phone
}

// Role returns the user's role as a string.
func (u UserIdentity) Role() string {
	if u.user == nil {
		return ""
	}
	return string(u.user.Role)
}

func bundleFor(identity Identity, token string) *IdentityBundle {
	return &IdentityBundle{
		Token: token,
		Name:  identity.Name(),
		Email: identity.Email(),
		Phone: identity.Phone(),
		Role:  identity.Role(),
	}
}
