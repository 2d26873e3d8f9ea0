package user

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_passwordPolicyTag(t *testing.T) {
	const (
		name  = "Maria Souza"
		uname = "mariasouza"
		email = "maria@agape.test"
	)
	tests := []struct {
		name string
		pwd  string
		want string
	}{
		{name: "too short", pwd: "Ab1!", want: pwdMinLenTag},
		{name: "whitespace", pwd: "Abcd 123!", want: pwdNoSpaceTag},
		{name: "all numeric", pwd: "1234567890", want: pwdNotAllNumTag},
		{name: "no upper", pwd: "abcdefg1!", want: pwdComplexityTag},
		{name: "no special", pwd: "Abcdefg12", want: pwdComplexityTag},
		{name: "similar to username", pwd: "Mariasouza1!", want: pwdAttrSimTag},
		{name: "similar to email", pwd: "Maria@agape.t3st", want: pwdAttrSimTag},
		{name: "acceptable", pwd: "Sup3r-S3cret!", want: ""},
		{name: "multibyte counts runes", pwd: "Çç1!Çç1!", want: ""},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, passwordPolicyTag(tt.pwd, name, uname, email))
		})
	}

	assert.Equal(t, pwdMinLenText, CheckPasswordPolicy("short", name, uname, email))
	assert.Empty(t, CheckPasswordPolicy("Sup3r-S3cret!", name, uname, email))
}

func TestHasAnyRole(t *testing.T) {
	tests := []struct {
		name  string
		have  []string
		want  []string
		allow bool
	}{
		{"owner holds every role", []string{RoleOwner}, []string{RoleFinance}, true},
		{"exact role", []string{RoleTeacher}, []string{RoleSecretary, RoleTeacher}, true},
		{"missing role", []string{RoleTeacher}, []string{RoleFinance}, false},
		{"no roles", nil, []string{RoleTeacher}, false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			usr := User{Roles: tt.have}
			assert.Equal(t, tt.allow, usr.HasAnyRole(tt.want...))
		})
	}
}
