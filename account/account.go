// Package account registers and signs in users.
package account

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hirosato/petsgram/domain"
	"github.com/hirosato/petsgram/model"
	"github.com/hirosato/petsgram/util"
	"golang.org/x/crypto/bcrypt"
)

const MinPasswordLength = 6

var (
	ErrFieldsRequired      = domain.Invalid("all fields are required")
	ErrPasswordTooShort    = domain.Invalid(fmt.Sprintf("password must be at least %d characters long", MinPasswordLength))
	ErrCredentialsRequired = domain.Invalid("username and password are required")
)

type Registration struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type Service struct {
	users domain.UserStore
	cost  int
	now   func() time.Time
}

func NewService(users domain.UserStore) *Service {
	return &Service{users: users, cost: bcrypt.DefaultCost, now: time.Now}
}

// Register creates the account. The store rejects a taken username, so two
// concurrent registrations cannot both win.
func (s *Service) Register(ctx context.Context, reg Registration) (model.User, error) {
	reg.Username = strings.TrimSpace(reg.Username)
	reg.FirstName = strings.TrimSpace(reg.FirstName)
	reg.LastName = strings.TrimSpace(reg.LastName)
	if reg.Username == "" || reg.Password == "" || reg.FirstName == "" || reg.LastName == "" {
		return model.User{}, ErrFieldsRequired
	}
	if len(reg.Password) < MinPasswordLength {
		return model.User{}, ErrPasswordTooShort
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), s.cost)
	if err != nil {
		return model.User{}, fmt.Errorf("hash password: %w", err)
	}
	user := model.User{
		Id:        uuid.New().String(),
		Username:  reg.Username,
		Password:  string(hash),
		FirstName: reg.FirstName,
		LastName:  reg.LastName,
		CreatedAt: util.Timestamp(s.now()),
	}
	if err := s.users.CreateUser(ctx, &user); err != nil {
		if !errors.Is(err, domain.ErrDuplicateUsername) {
			log.Printf("account: register %s: %v", user.Username, err)
		}
		return model.User{}, err
	}
	log.Printf("EVENT: registered %s as %s", user.Username, user.Id)
	return user, nil
}

// Login checks the credentials. Unknown user and wrong password fail the
// same way.
func (s *Service) Login(ctx context.Context, username, password string) (model.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return model.User{}, ErrCredentialsRequired
	}
	user, err := s.users.GetUserByUsername(ctx, username)
	if errors.Is(err, domain.ErrNotFound) {
		return model.User{}, domain.ErrInvalidCredentials
	}
	if err != nil {
		log.Printf("account: look up %s: %v", username, err)
		return model.User{}, fmt.Errorf("look up user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return model.User{}, domain.ErrInvalidCredentials
	}
	return user, nil
}

// Profile returns the account behind a signed-in viewer.
func (s *Service) Profile(ctx context.Context, viewer model.Viewer) (model.User, error) {
	if viewer.IsAnonymous() {
		return model.User{}, domain.ErrUnauthorized
	}
	user, err := s.users.GetUserByUsername(ctx, viewer.Username)
	if errors.Is(err, domain.ErrNotFound) || (err == nil && user.Id != viewer.UserId) {
		return model.User{}, domain.ErrUnauthorized
	}
	if err != nil {
		return model.User{}, fmt.Errorf("look up user: %w", err)
	}
	return user, nil
}
