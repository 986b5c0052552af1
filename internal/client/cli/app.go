package cli

import (
	"bufio"
	"context"
	"io"
	"os"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/client/client"
	"github.com/dmitrijs2005/credkeeper/internal/client/config"
)

type App struct {
	client  client.Client
	reader  *bufio.Reader
	out     io.Writer
	timeout time.Duration
}

func NewApp(c *config.Config) (*App, error) {
	apiClient, err := client.NewCredKeeperClient(c.ServerEndpointAddr)
	if err != nil {
		return nil, err
	}
	return newApp(apiClient, os.Stdin, os.Stdout, c.RequestTimeout), nil
}

func newApp(c client.Client, in io.Reader, out io.Writer, timeout time.Duration) *App {
	return &App{client: c, reader: bufio.NewReader(in), out: out, timeout: timeout}
}

// Run blocks in the REPL until the user exits or input ends.
func (a *App) Run(ctx context.Context) {
	defer a.client.Close()
	runREPL(ctx, a, a.status, a.reader)
}

func (a *App) isLoggedIn() bool {
	return a.client.LoggedIn()
}

func (a *App) status() string {
	if a.isLoggedIn() {
		return "logged in"
	}
	return "guest"
}

func (a *App) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, a.timeout)
}
