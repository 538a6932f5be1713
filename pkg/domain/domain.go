package domain

import "fmt"

// Domain is a routable specialization served by one model.
// It is immutable once registered.
type Domain struct {
	ID             string       `json:"id" yaml:"id"`
	Description    string       `json:"description" yaml:"description"`
	Keywords       []string     `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	ModelName      string       `json:"model_name" yaml:"model_name"`
	Backend        BackendKind  `json:"backend,omitempty" yaml:"backend,omitempty"`
	Device         string       `json:"device,omitempty" yaml:"device,omitempty"`
	Quantization   Quantization `json:"quantization,omitempty" yaml:"quantization,omitempty"`
	PromptTemplate string       `json:"prompt_template,omitempty" yaml:"prompt_template,omitempty"`
	SystemPrompt   string       `json:"system_prompt,omitempty" yaml:"system_prompt,omitempty"`
	MaxTokens      int          `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	Temperature    float64      `json:"temperature,omitempty" yaml:"temperature,omitempty"`
}

// ModelConfig derives the loading recipe of the domain's model.
func (d Domain) ModelConfig() ModelConfig {
	cfg := ModelConfigForTier3(d.ModelName)
	if d.Backend != "" {
		cfg.Backend = d.Backend
	}
	if d.Device != "" {
		cfg.Device = d.Device
	}
	if d.Quantization != "" {
		cfg.Quantization = d.Quantization
	}
	return cfg
}

// Validate checks the fields required for registration.
func (d Domain) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("domain id is required")
	}
	if d.Description == "" {
		return fmt.Errorf("domain %q: description is required", d.ID)
	}
	return nil
}

const defaultDomainModel = "gpt2"

var predefined = map[string]Domain{
	"finance": {
		ID:          "finance",
		Description: "Financial transactions, banking, payments, transfers and account balances",
		Keywords: []string{
			"money", "transfer", "payment", "balance", "account", "bank",
			"savings", "deposit", "withdraw", "invoice", "$",
		},
		SystemPrompt:   "You are a careful financial assistant.",
		PromptTemplate: "Answer the following banking request.\n{query}",
		MaxTokens:      256,
		Temperature:    0.3,
	},
	"support": {
		ID:          "support",
		Description: "Customer support, account help, complaints, refunds and orders",
		Keywords: []string{
			"help", "support", "refund", "order", "complaint", "issue",
			"cancel", "return", "shipping",
		},
		SystemPrompt:   "You are a friendly customer support agent.",
		PromptTemplate: "Customer message:\n{query}",
		MaxTokens:      256,
		Temperature:    0.5,
	},
	"technical": {
		ID:          "technical",
		Description: "Technical troubleshooting of software, servers, networks and errors",
		Keywords: []string{
			"error", "bug", "server", "install", "crash", "network",
			"configure", "database", "deploy", "code",
		},
		SystemPrompt:   "You are an experienced systems engineer.",
		PromptTemplate: "Troubleshoot the following problem.\n{query}",
		MaxTokens:      384,
		Temperature:    0.2,
	},
	"medical_coding": {
		ID:          "medical_coding",
		Description: "Medical coding with ICD-10, CPT and HCPCS codes for diagnoses and procedures",
		Keywords: []string{
			"icd", "icd-10", "cpt", "hcpcs", "code", "diagnosis",
			"procedure", "coding", "modifier",
		},
		SystemPrompt:   "You are a certified medical coder.",
		PromptTemplate: "Provide the appropriate codes.\n{query}",
		MaxTokens:      256,
		Temperature:    0.1,
	},
	"medical_billing": {
		ID:          "medical_billing",
		Description: "Medical billing, claims, reimbursement, charges and insurance payments",
		Keywords: []string{
			"billing", "bill", "claim", "charge", "reimbursement",
			"insurance", "payer", "copay",
		},
		SystemPrompt:   "You are a medical billing specialist.",
		PromptTemplate: "Handle the following billing request.\n{query}",
		MaxTokens:      256,
		Temperature:    0.2,
	},
}

// Predefined returns a ready-made domain by id.
func Predefined(id string) (Domain, error) {
	d, ok := predefined[id]
	if !ok {
		return Domain{}, fmt.Errorf("%w: %s", ErrUnknownDomain, id)
	}
	d.ModelName = defaultDomainModel
	d.Keywords = append([]string(nil), d.Keywords...)
	return d, nil
}

// PredefinedIDs lists the ids accepted by Predefined.
func PredefinedIDs() []string {
	return []string{"finance", "support", "technical", "medical_coding", "medical_billing"}
}
