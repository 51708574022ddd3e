package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/kozaktomas/me-in-moments/internal/facematch"
	"github.com/kozaktomas/me-in-moments/internal/imageproc"
	"github.com/spf13/cobra"
)

var embedCmd = &cobra.Command{
	Use:   "embed <image>",
	Short: "Detect the faces in a photo",
	Long: `Send a photo to the embedding server and list the detected faces with their
bounding boxes and detection scores. Useful to check whether a photo is a
valid reference (exactly one face).`,
	Args: cobra.ExactArgs(1),
	RunE: runEmbed,
}

func init() {
	rootCmd.AddCommand(embedCmd)

	embedCmd.Flags().String("preprocess", "", "Image preprocessing before embedding: none, gray or equalize")
	embedCmd.Flags().Bool("json", false, "Output as JSON")
	embedCmd.Flags().Bool("vectors", false, "Include embedding vectors in JSON output")
}

// EmbedFace is one detected face in the embed output
type EmbedFace struct {
	Index    int       `json:"index"`
	BBox     []float64 `json:"bbox,omitempty"`
	DetScore float64   `json:"det_score"`
	Dim      int       `json:"dim"`
	Vector   []float32 `json:"vector,omitempty"`
}

// EmbedOutput represents the JSON output structure
type EmbedOutput struct {
	Image          string      `json:"image"`
	Model          string      `json:"model"`
	Faces          []EmbedFace `json:"faces"`
	ValidReference bool        `json:"valid_reference"`
}

func runEmbed(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	modeName := mustGetString(cmd, "preprocess")
	if modeName == "" {
		modeName = cfg.Match.Preprocess
	}
	mode, err := imageproc.ParseMode(modeName)
	if err != nil {
		return err
	}

	client := newEmbeddingClient(cfg, mode)
	set, err := client.Embed(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	output := EmbedOutput{
		Image:          args[0],
		Model:          client.Model(),
		Faces:          make([]EmbedFace, 0, len(set)),
		ValidReference: facematch.ValidateReference(set) == nil,
	}
	includeVectors := mustGetBool(cmd, "vectors")
	for i, e := range set {
		face := EmbedFace{Index: i, BBox: e.BBox, DetScore: e.DetScore, Dim: e.Dim()}
		if includeVectors {
			face.Vector = e.Vector
		}
		output.Faces = append(output.Faces, face)
	}

	if mustGetBool(cmd, "json") {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(output)
	}

	fmt.Printf("Image: %s\n", output.Image)
	fmt.Printf("Model: %s\n", output.Model)
	fmt.Printf("Faces: %d\n\n", len(output.Faces))

	if len(output.Faces) > 0 {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "FACE\tBBOX [x y w h]\tSCORE\tDIM")
		fmt.Fprintln(w, "----\t--------------\t-----\t---")
		for _, f := range output.Faces {
			fmt.Fprintf(w, "%d\t%s\t%.3f\t%d\n", f.Index, formatBox(f.BBox), f.DetScore, f.Dim)
		}
		w.Flush()
		fmt.Println()
	}

	if output.ValidReference {
		fmt.Println("Usable as reference: yes")
	} else {
		fmt.Println("Usable as reference: no (exactly one face is required)")
	}
	return nil
}

func formatBox(box []float64) string {
	if len(box) != 4 {
		return "-"
	}
	return fmt.Sprintf("%.0f %.0f %.0f %.0f", box[0], box[1], box[2], box[3])
}
