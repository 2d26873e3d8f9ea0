package main

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/agape/core"
	"github.com/trezcool/agape/services/spreadsheet"
)

const (
	notifyJobKey = "notify-delinquents"
	notifyJobTTL = 10 * time.Minute
)

// notifyDelinquents emails the delinquency report to the finance team.
// Only one run at a time is allowed across instances.
func (cli *commandLine) notifyDelinquents(to string) error {
	rcpt := cli.conf.FinanceEmail
	if to = strings.TrimSpace(to); to != "" {
		addr, err := mail.ParseAddress(to)
		if err != nil {
			return errors.Wrap(err, "parsing recipient")
		}
		rcpt = *addr
	}
	if rcpt.Address == "" {
		return errors.New("no recipient: set the finance email or pass -to")
	}

	return cli.locker.Run(context.Background(), notifyJobKey, notifyJobTTL, func(ctx context.Context) error {
		delinquents, err := cli.billingSvc.Delinquents(ctx)
		if err != nil {
			return err
		}
		if len(delinquents) == 0 {
			fmt.Fprintln(cli.out, "no delinquents, nothing sent")
			return nil
		}

		var b strings.Builder
		var count int
		fmt.Fprintf(&b, "Alunos com cobranças vencidas em %s:\n\n", cli.billingSvc.Today().Time().Format("02/01/2006"))
		for _, d := range delinquents {
			count += d.Count
			fmt.Fprintf(&b, "- %s (%s): %d em aberto, %s\n",
				d.StudentName, d.ClassName, d.Count, core.FormatMoney(d.Total, cli.conf.Billing.Currency))
		}

		buf, err := spreadsheet.DelinquencyWorkbook(delinquents)
		if err != nil {
			return errors.Wrap(err, "exporting delinquents")
		}

		msg := &core.EmailMessage{
			To:          []mail.Address{rcpt},
			Subject:     fmt.Sprintf("Inadimplência: %d alunos, %d cobranças", len(delinquents), count),
			TextContent: b.String(),
		}
		filename := fmt.Sprintf("inadimplentes-%s.xlsx", cli.billingSvc.Today())
		if err = msg.Attach(buf, filename, spreadsheet.ContentType); err != nil {
			return err
		}
		cli.mailSvc.SendMessages(msg)

		fmt.Fprintf(cli.out, "delinquency report sent to %s\n", rcpt.Address)
		return nil
	})
}
