package auth

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type rolesFile struct {
	Users []struct {
		Email string `yaml:"email"`
		Name  string `yaml:"name"`
		Role  string `yaml:"role"`
	} `yaml:"users"`
}

// SeedRolesFromFile assigns the roles listed in the YAML file at path,
// creating users that have not signed in yet. Users already holding the
// listed role are left untouched.
func (s *Store) SeedRolesFromFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	var rf rolesFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}
	changed := 0
	for _, entry := range rf.Users {
		email := strings.ToLower(strings.TrimSpace(entry.Email))
		if email == "" {
			continue
		}
		role, err := ParseRole(entry.Role)
		if err != nil {
			return changed, fmt.Errorf("seed %s: %w", email, err)
		}
		existing, err := s.GetUserByEmail(ctx, email)
		if err != nil {
			return changed, err
		}
		if existing == nil {
			if _, err := s.CreateUser(ctx, User{Email: email, Name: entry.Name, Role: role}); err != nil {
				return changed, err
			}
			changed++
			continue
		}
		if existing.Role == role {
			continue
		}
		if err := s.SetRole(ctx, existing.ID, role); err != nil {
			return changed, err
		}
		changed++
	}
	return changed, nil
}
