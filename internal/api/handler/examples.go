package handler

import (
	"net/http"

	"github.com/tris077/Atomera/internal/api/response"
)

// Example is a ready-to-submit protein/ligand pair for first-time users.
type Example struct {
	Name            string `json:"name"`
	Description     string `json:"description"`
	ProteinSequence string `json:"protein_sequence"`
	LigandSMILES    string `json:"ligand_smiles"`
}

var examples = []Example{
	{
		Name:            "Insulin + Aspirin",
		Description:     "Human insulin B-chain fragment with acetylsalicylic acid",
		ProteinSequence: "MALWMRLLPLLALLALWGPDPAAAFVNQHLCGSHLVEALYLVCGERGFFYTPKT",
		LigandSMILES:    "CC(=O)OC1=CC=CC=C1C(=O)O",
	},
	{
		Name:            "Lysozyme + Ibuprofen",
		Description:     "Hen egg-white lysozyme with ibuprofen",
		ProteinSequence: "KVFGRCELAAAMKRHGLDNYRGYSLGNWVCAAKFESNFNTQATNRNTDGSTDYGILQINSRWWCNDGRTPGSRNLCNIPCSALLSSDITASVNCAKKIVSDGNGMNAWVAWRNRCKGTDVQAWIRGCRL",
		LigandSMILES:    "CC(C)CC1=CC=C(C=C1)C(C)C(=O)O",
	},
	{
		Name:            "Carbonic anhydrase + Caffeine",
		Description:     "PDB id lookup with caffeine",
		ProteinSequence: "1CA2",
		LigandSMILES:    "CN1C=NC2=C1C(=O)N(C(=O)N2C)C",
	},
}

// NewExamplesHandler returns the handler for GET /api/v1/examples.
func NewExamplesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		response.JSON(w, examples)
	}
}
