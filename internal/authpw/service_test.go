package authpw

import (
	"context"
	"database/sql"
	"testing"

	"github.com/lemmaiot-tech/neka/internal/store"
	"golang.org/x/crypto/bcrypt"
)

type fakeUserStore struct {
	users map[string]store.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: map[string]store.User{}}
}

func (f *fakeUserStore) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	user, ok := f.users[email]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return user, nil
}

func (f *fakeUserStore) CreateUser(_ context.Context, user store.User) error {
	f.users[user.Email] = user
	return nil
}

func TestSignUpCreatesUserWithHashedPassword(t *testing.T) {
	svc := NewService(newFakeUserStore())

	user, err := svc.SignUp(context.Background(), SignUpRequest{
		Email:       "Ada@Example.com",
		Password:    "correct-horse",
		DisplayName: "Ada Lovelace",
	})
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if user.ID == "" {
		t.Fatal("expected user id")
	}
	if user.Email != "ada@example.com" {
		t.Fatalf("expected lowercased email, got %q", user.Email)
	}
	if user.PasswordHash == "correct-horse" {
		t.Fatal("password stored in plain text")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("correct-horse")); err != nil {
		t.Fatalf("hash does not verify: %v", err)
	}
}

func TestSignUpRejectsShortPassword(t *testing.T) {
	svc := NewService(newFakeUserStore())

	_, err := svc.SignUp(context.Background(), SignUpRequest{
		Email:       "ada@example.com",
		Password:    "short",
		DisplayName: "Ada",
	})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestSignUpRejectsDuplicateEmail(t *testing.T) {
	svc := NewService(newFakeUserStore())

	first := SignUpRequest{Email: "ada@example.com", Password: "correct-horse", DisplayName: "Ada"}
	if _, err := svc.SignUp(context.Background(), first); err != nil {
		t.Fatalf("first sign up: %v", err)
	}
	if _, err := svc.SignUp(context.Background(), first); err != ErrEmailExists {
		t.Fatalf("expected ErrEmailExists, got %v", err)
	}
}

func TestSignInVerifiesPassword(t *testing.T) {
	svc := NewService(newFakeUserStore())

	if _, err := svc.SignUp(context.Background(), SignUpRequest{
		Email: "ada@example.com", Password: "correct-horse", DisplayName: "Ada",
	}); err != nil {
		t.Fatalf("sign up: %v", err)
	}

	user, err := svc.SignIn(context.Background(), SignInRequest{Email: "ada@example.com", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if user.DisplayName != "Ada" {
		t.Fatalf("unexpected user: %+v", user)
	}

	if _, err := svc.SignIn(context.Background(), SignInRequest{Email: "ada@example.com", Password: "wrong"}); err != ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.SignIn(context.Background(), SignInRequest{Email: "nobody@example.com", Password: "whatever"}); err != ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}
