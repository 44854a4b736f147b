package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/openhelm/supportdesk/internal/models"
	pgrepo "github.com/openhelm/supportdesk/internal/repositories/postgres"
	"github.com/openhelm/supportdesk/internal/utils"
)

type UserService interface {
	RegisterAgent(ctx context.Context, username, email, password string) (*models.User, error)
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
	Get(ctx context.Context, id uint) (*models.User, error)
}

type userService struct {
	users pgrepo.UserRepo
}

func NewUserService(users pgrepo.UserRepo) UserService {
	return &userService{users: users}
}

func (s *userService) RegisterAgent(ctx context.Context, username, email, password string) (*models.User, error) {
	const op = "UserService.RegisterAgent"

	if username == "" || email == "" || password == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "username, email, and password are required", nil)
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, utils.E(utils.CodeConflict, op, "email already registered", nil)
	} else if !errors.Is(err, utils.ErrNotFound) {
		return nil, utils.E(utils.CodeInternal, op, "lookup failed", err)
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to hash password", err)
	}

	u := &models.User{
		ExternalID:   uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         models.RoleAgent,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to create user", err)
	}
	return u, nil
}

func (s *userService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	const op = "UserService.Authenticate"

	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, utils.ErrNotFound) {
		return nil, utils.E(utils.CodeUnauthorized, op, "invalid credentials", nil)
	}
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "lookup failed", err)
	}
	if err := utils.CheckPassword(u.PasswordHash, password); err != nil {
		return nil, utils.E(utils.CodeUnauthorized, op, "invalid credentials", nil)
	}
	return u, nil
}

func (s *userService) Get(ctx context.Context, id uint) (*models.User, error) {
	const op = "UserService.Get"

	u, err := s.users.GetByID(ctx, id)
	if errors.Is(err, utils.ErrNotFound) {
		return nil, utils.E(utils.CodeNotFound, op, "user not found", err)
	}
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to get user", err)
	}
	return u, nil
}
