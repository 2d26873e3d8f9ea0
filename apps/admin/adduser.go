package main

import (
	"context"
	"fmt"

	"github.com/trezcool/agape/core/user"
)

// addUser creates an active staff account.
func (cli *commandLine) addUser(name, uname, email string, roles []string, pwd string) error {
	usr, err := cli.usrSvc.Create(context.Background(), user.NewUser{
		Name:            name,
		Username:        uname,
		Email:           email,
		Password:        pwd,
		PasswordConfirm: pwd,
		Roles:           roles,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "user %q created\n", usr.Username)
	return nil
}
