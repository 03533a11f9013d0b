package main

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/capitalize-ai/support-console/internal/autoresponse"
	"github.com/capitalize-ai/support-console/internal/intent"
	"github.com/capitalize-ai/support-console/internal/model"
	"github.com/capitalize-ai/support-console/pkg/logger"
)

var suggest bool

var classifyCmd = &cobra.Command{
	Use:   "classify <text>",
	Short: "Classify a customer message and print the intent",
	Example: `  console classify "¿Dónde está mi pedido #12345?"
  console classify --suggest "Quiero cancelar mi pedido"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.TrimSpace(strings.Join(args, " "))
		if text == "" {
			return errors.New("text cannot be empty")
		}

		in := intent.New().Classify(text)
		out := struct {
			Intent      model.Intent       `json:"intent"`
			Suggestions []model.Suggestion `json:"suggestions,omitempty"`
		}{Intent: in}

		if suggest {
			gen := autoresponse.New(autoresponse.DefaultConfig(), nil, logger.Global().Named("classify"),
				autoresponse.WithClock(time.Now))
			out.Suggestions = gen.GenerateResponse(cmd.Context(), in, nil)
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	classifyCmd.Flags().BoolVar(&suggest, "suggest", false, "also draft suggestions without customer context")
}
