// agentctl is a command-line client for agentd
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"agentd/grpcserver"
	"agentd/grpcserver/pb"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	roleStyles  = map[pb.Message_MessageRole]lipgloss.Style{
		pb.Message_USER:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("33")),
		pb.Message_ASSISTANT: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("35")),
		pb.Message_SYSTEM:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("244")),
		pb.Message_TOOL:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("172")),
	}
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

var (
	network string
	address string
	timeout time.Duration
)

var rootCmd = &cobra.Command{
	Use:          "agentctl",
	Short:        "Talk to an agentd server",
	SilenceUsage: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&network, "network", "unix", "server network (unix, tcp)")
	flags.StringVar(&address, "address", "/tmp/agentd.sock", "socket path or host:port")
	flags.DurationVar(&timeout, "timeout", 5*time.Minute, "request timeout")

	rootCmd.AddCommand(askCmd, historyCmd, modelsCmd, healthCmd)
}

func target() string {
	if network == "unix" {
		return "unix://" + address
	}
	return address
}

// withClient dials the server and runs fn with a request-scoped context
func withClient(fn func(ctx context.Context, client pb.AgentServiceClient) error) error {
	conn, err := grpc.NewClient(target(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", target(), err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return fn(ctx, pb.NewAgentServiceClient(conn))
}

var (
	conversationID string
	messageType    string
	modelID        string
	systemPrompt   string
	enableTools    bool
	allowedTools   []string
	noStream       bool
	requestID      string
)

var askCmd = &cobra.Command{
	Use:   "ask [message]",
	Short: "Send a message and print the reply",
	Long: `Send a message to a conversation and print the reply.

Examples:
  agentctl ask "what time is it in Tokyo?" --tools
  agentctl ask --conversation c1 "and in Paris?"
  agentctl ask --conversation c1 --type continue`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := buildRequest(args)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		return withClient(func(ctx context.Context, client pb.AgentServiceClient) error {
			if requestID != "" {
				ctx = metadata.AppendToOutgoingContext(ctx, grpcserver.RequestIDHeader, requestID)
			}
			if noStream {
				resp, err := client.ProcessMessage(ctx, req)
				if err != nil {
					return err
				}
				for _, exec := range resp.ToolExecutions {
					printExecution(out, exec)
				}
				fmt.Fprintln(out, resp.Message.GetContent())
				printSummary(out, resp.ConversationId, resp.Usage, resp.Metadata, resp.Incomplete)
				return nil
			}
			return streamReply(ctx, out, client, req)
		})
	},
}

func init() {
	flags := askCmd.Flags()
	flags.StringVarP(&conversationID, "conversation", "c", "", "conversation ID (empty starts a new one)")
	flags.StringVar(&messageType, "type", "chat", "message type (chat, continue, instruction)")
	flags.StringVarP(&modelID, "model", "m", "", "model ID (empty uses the server default)")
	flags.StringVar(&systemPrompt, "system", "", "system prompt")
	flags.BoolVar(&enableTools, "tools", false, "let the model call tools")
	flags.StringSliceVar(&allowedTools, "allow-tool", nil, "restrict tools to these names")
	flags.BoolVar(&noStream, "no-stream", false, "wait for the full reply instead of streaming")
	flags.StringVar(&requestID, "request-id", "", "request ID sent as x-request-id")
}

func buildRequest(args []string) (*pb.ProcessMessageRequest, error) {
	msgType, ok := pb.MessageContext_MessageType_value[strings.ToUpper(messageType)]
	if !ok {
		return nil, fmt.Errorf("unknown message type %q", messageType)
	}
	content := ""
	if len(args) > 0 {
		content = args[0]
	}
	return &pb.ProcessMessageRequest{
		Context: &pb.MessageContext{
			ConversationId: conversationID,
			Type:           pb.MessageContext_MessageType(msgType),
			Content:        content,
		},
		Options: &pb.AgentOptions{
			ModelId:      modelID,
			SystemPrompt: systemPrompt,
			EnableTools:  enableTools,
			AllowedTools: allowedTools,
		},
	}, nil
}

func streamReply(ctx context.Context, out io.Writer, client pb.AgentServiceClient, req *pb.ProcessMessageRequest) error {
	stream, err := client.ProcessMessageStream(ctx, req)
	if err != nil {
		return err
	}
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			fmt.Fprintln(out)
			return err
		}
		switch {
		case chunk.ToolExecution != nil:
			printExecution(out, chunk.ToolExecution)
		case chunk.IsFinal:
			fmt.Fprintln(out)
			printSummary(out, chunk.ConversationId, chunk.Usage, chunk.Metadata, chunk.Incomplete)
		default:
			fmt.Fprint(out, chunk.Content)
		}
	}
}

func printExecution(out io.Writer, exec *pb.ToolExecution) {
	line := fmt.Sprintf("[%s %s %dms]", exec.ToolName, strings.ToLower(exec.Status.String()), exec.DurationMs)
	if exec.Status != pb.ToolExecution_SUCCEEDED {
		fmt.Fprintln(out, errorStyle.Render(line+" "+exec.Error))
		return
	}
	fmt.Fprintln(out, dimStyle.Render(line))
}

func printSummary(out io.Writer, conversationID string, usage *pb.TokenUsage, meta *pb.ResponseMetadata, incomplete bool) {
	parts := []string{"conversation " + conversationID}
	if meta != nil {
		parts = append(parts, meta.ModelId, meta.FinishReason, fmt.Sprintf("%dms", meta.LatencyMs))
	}
	if usage != nil {
		parts = append(parts, fmt.Sprintf("%d+%d tokens, %d calls", usage.PromptTokens, usage.CompletionTokens, usage.LlmCallCount))
	}
	if incomplete {
		parts = append(parts, "incomplete")
	}
	fmt.Fprintln(out, dimStyle.Render(strings.Join(parts, " | ")))
}

var (
	historyLimit  int32
	historyCursor string
)

var historyCmd = &cobra.Command{
	Use:   "history <conversation-id>",
	Short: "Print a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		return withClient(func(ctx context.Context, client pb.AgentServiceClient) error {
			resp, err := client.GetConversationHistory(ctx, &pb.GetConversationHistoryRequest{
				ConversationId: args[0],
				Limit:          historyLimit,
				Cursor:         historyCursor,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(out, headerStyle.Render("Conversation "+resp.ConversationId))
			for _, msg := range resp.Messages {
				printMessage(out, msg)
			}
			if resp.NextCursor != "" {
				fmt.Fprintln(out, dimStyle.Render("more: --cursor "+resp.NextCursor))
			}
			return nil
		})
	},
}

func init() {
	historyCmd.Flags().Int32Var(&historyLimit, "limit", 0, "page size (0 returns everything)")
	historyCmd.Flags().StringVar(&historyCursor, "cursor", "", "continue after this cursor")
}

func printMessage(out io.Writer, msg *pb.Message) {
	role := strings.ToLower(strings.TrimPrefix(msg.GetRole().String(), "MESSAGE_ROLE_"))
	style, ok := roleStyles[msg.GetRole()]
	if !ok {
		style = dimStyle
	}
	header := fmt.Sprintf("#%d %s", msg.Sequence, role)
	if msg.ToolName != "" {
		header += " (" + msg.ToolName + ")"
	}
	if ts := msg.GetTimestamp(); ts != nil {
		header += " " + dimStyle.Render(ts.AsTime().Local().Format(time.TimeOnly))
	}
	fmt.Fprintln(out, style.Render(header))
	if msg.Content != "" {
		fmt.Fprintln(out, msg.Content)
	}
	for _, call := range msg.ToolCalls {
		fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf("-> %s(%s)", call.Name, call.Arguments)))
	}
	if msg.Incomplete {
		fmt.Fprintln(out, dimStyle.Render("(incomplete)"))
	}
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models the server offers",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		return withClient(func(ctx context.Context, client pb.AgentServiceClient) error {
			resp, err := client.ListModels(ctx, &pb.ListModelsRequest{})
			if err != nil {
				return err
			}
			fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("Models (%d)", len(resp.Models))))
			for _, m := range resp.Models {
				marker := "  "
				if m.Id == resp.DefaultModel {
					marker = "* "
				}
				fmt.Fprintf(out, "%s%s %s\n", marker, m.Id, dimStyle.Render(m.Provider+" / "+m.DisplayName))
			}
			return nil
		})
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the server is up",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(ctx context.Context, client pb.AgentServiceClient) error {
			resp, err := client.HealthCheck(ctx, &pb.HealthCheckRequest{})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Status)
			return nil
		})
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}
