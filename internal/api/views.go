package api

import (
	"net/http"
	"time"

	"github.com/fuomag9/kabomba-auth/internal/models"
)

// userPublic is returned to callers that just created an account.
type userPublic struct {
	ID        int    `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// userDetail is the full representation, including privilege flags.
type userDetail struct {
	userPublic
	IsSuperuser bool       `json:"is_superuser"`
	IsStaff     bool       `json:"is_staff"`
	IsActive    bool       `json:"is_active"`
	DateJoined  time.Time  `json:"date_joined"`
	LastLogin   *time.Time `json:"last_login"`
}

// profileFields is the editable subset of a profile.
type profileFields struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type detailWithToken struct {
	userDetail
	AccessToken string `json:"access_token"`
}

type publicWithToken struct {
	userPublic
	AccessToken string `json:"access_token"`
}

func newUserPublic(u *models.User) userPublic {
	return userPublic{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.EmailAddress(),
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

func newUserDetail(u *models.User) userDetail {
	return userDetail{
		userPublic:  newUserPublic(u),
		IsSuperuser: u.IsSuperuser,
		IsStaff:     u.IsStaff,
		IsActive:    u.IsActive,
		DateJoined:  u.DateJoined,
		LastLogin:   u.LastLogin,
	}
}

func newProfileFields(u *models.User) profileFields {
	return profileFields{
		Username:  u.Username,
		Email:     u.EmailAddress(),
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

type profileShape int

const (
	shapeNone profileShape = iota
	shapeFull
	shapeRestricted
)

// profileShapeFor picks the representation /auth/user uses for a method.
func profileShapeFor(method string) profileShape {
	switch method {
	case http.MethodGet, http.MethodHead:
		return shapeFull
	case http.MethodPatch:
		return shapeRestricted
	default:
		return shapeNone
	}
}

func renderProfile(shape profileShape, u *models.User) any {
	if shape == shapeRestricted {
		return newProfileFields(u)
	}
	return newUserDetail(u)
}
