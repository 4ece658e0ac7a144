package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"eino_voice_shop/internal/api"
	"eino_voice_shop/internal/speech"
	"eino_voice_shop/pkg"
	"eino_voice_shop/src/logger"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file found, using environment variables")
	}

	root := &cobra.Command{
		Use:           "eino_voice_shop",
		Short:         "Voice and text shopping assistant",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newChatCmd(), newStructureCmd())

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP and voice server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer app.Close()
			return serve(ctx, app, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides SERVER_ADDR")
	return cmd
}

func serve(ctx context.Context, app *application, addr string) error {
	server := app.cfg.ServerConfig
	if addr == "" {
		addr = server.Addr
	}

	handler := api.NewHandler(api.Deps{
		Controller:  app.controller,
		Structurer:  app.structurer,
		Sessions:    app.sessions,
		Journal:     app.journal,
		HealthCheck: app.healthCheck,

		JournalRetention: app.cfg.ConversationConfig.JournalRetention,
	})
	var voiceStructurer speech.Structurer
	if app.structurer != nil {
		voiceStructurer = app.structurer
	}
	voice := speech.NewHandler(app.controller, voiceStructurer, speech.Config{
		SettleDelay:        app.cfg.SpeechConfig.SettleDelay,
		DuplicateThreshold: app.cfg.SpeechConfig.DuplicateThreshold,
	}, app.assistant.Persona, api.OriginChecker(server.AllowedOrigins))

	srv := &http.Server{
		Addr:         addr,
		Handler:      api.NewRouter(handler, voice, server.AllowedOrigins),
		ReadTimeout:  server.ReadTimeout,
		WriteTimeout: server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info().Msg("Server stopped")
	return nil
}

func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Talk to the assistant in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()
			return chat(cmd.Context(), app, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func chat(ctx context.Context, app *application, in io.Reader, out io.Writer) error {
	sessionID := uuid.NewString()
	scanner := bufio.NewScanner(in)

	fmt.Fprintln(out, "Shopping assistant ready. Type /clear to start over, /quit to leave.")
	for {
		fmt.Fprint(out, "\nYou: ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/clear":
			if err := app.sessions.Reset(ctx, sessionID); err != nil {
				return err
			}
			fmt.Fprintln(out, "Conversation cleared.")
			continue
		}

		state, err := app.sessions.Load(ctx, sessionID)
		if err != nil {
			return err
		}
		result, err := app.controller.RunTurn(ctx, pkg.TurnInput{
			SessionID:    sessionID,
			Utterance:    line,
			History:      state.Messages,
			Memory:       state.Memory,
			SystemPrompt: app.assistant.Persona,
		})
		if result == nil {
			return err
		}
		if err != nil {
			logger.Warn().Err(err).Msg("Turn failed")
		}

		fmt.Fprintf(out, "Assistant: %s\n", result.ResponseText)
		if result.FollowUp != nil {
			fmt.Fprintf(out, "Assistant: %s\n", *result.FollowUp)
		}
		if err := app.sessions.RecordTurn(ctx, sessionID, line, result); err != nil {
			logger.Warn().Err(err).Msg("Failed to save session")
		}
	}
}

func newStructureCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "structure <text>",
		Short: "Print the structured reply for a piece of assistant text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			reply, err := app.structurer.Structure(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				logger.Warn().Err(err).Msg("Structured reply used fallback")
			}
			data, err := sonic.ConfigStd.MarshalIndent(reply, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}
