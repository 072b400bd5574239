package web

import (
	"github.com/gofiber/fiber/v2"
	tours "github.com/goliatone/go-tours"
)

// templateHelpers returns the auth-derived values every view can rely on.
//
// In templates:
//
//	{% if is_authenticated %}
//	{% if can_manage_tours %}
//	{% if user.Role == roles.admin %}
func templateHelpers(user *tours.User) fiber.Map {
	return fiber.Map{
		"user":             user,
		"is_authenticated": user != nil,
		"is_admin":         hasRole(user, tours.RoleAdmin),
		"can_manage_tours": hasRole(user, tours.RoleAdmin, tours.RoleLeadGuide),
		"can_review":       hasRole(user, tours.RoleUser),
		"roles":            roleNames(),
	}
}

func hasRole(user *tours.User, roles ...tours.UserRole) bool {
	if user == nil {
		return false
	}
	return user.Role.In(roles...)
}

func roleNames() map[string]string {
	out := make(map[string]string, len(tours.GetAllRoles()))
	for _, role := range tours.GetAllRoles() {
		out[roleKey(role)] = string(role)
	}
	return out
}

func roleKey(role tours.UserRole) string {
	if role == tours.RoleLeadGuide {
		return "lead_guide"
	}
	return string(role)
}
