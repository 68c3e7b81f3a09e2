package dto

import "github.com/tnqbao/gau-vm-orchestrator/validation"

// SSHCommandRequest is forwarded as-is to the execution collaborator; only
// its shape is checked here.
type SSHCommandRequest struct {
	Command   string         `json:"command,omitempty"`
	Playbook  string         `json:"playbook,omitempty"`
	ExtraVars map[string]any `json:"extra_vars"`
}

type PlaybookRequest struct {
	Playbook  string         `json:"playbook"`
	ExtraVars map[string]any `json:"extra_vars"`
}

// KyuboCommunicationData is reported back once a Kyubo VM has an address.
type KyuboCommunicationData struct {
	IPCommunication string `json:"ip_communication"`
	RequestID       string `json:"request_id"`
}

var sshCommandSchema = &validation.Schema[SSHCommandRequest]{
	Name: "SSHCommandRequest",
	Fields: []validation.Field[SSHCommandRequest]{
		{
			Name: "command",
			Apply: func(raw any, r *SSHCommandRequest) (err error) {
				r.Command, err = validation.String("command", raw)
				return err
			},
		},
		{
			Name: "playbook",
			Apply: func(raw any, r *SSHCommandRequest) (err error) {
				r.Playbook, err = validation.String("playbook", raw)
				return err
			},
		},
		{
			Name:    "extra_vars",
			Default: func(r *SSHCommandRequest) { r.ExtraVars = map[string]any{} },
			Apply: func(raw any, r *SSHCommandRequest) (err error) {
				r.ExtraVars, err = validation.AnyMap("extra_vars", raw)
				return err
			},
		},
	},
}

var playbookSchema = &validation.Schema[PlaybookRequest]{
	Name: "PlaybookRequest",
	Fields: []validation.Field[PlaybookRequest]{
		{
			Name:     "playbook",
			Required: true,
			Apply: func(raw any, r *PlaybookRequest) (err error) {
				r.Playbook, err = validation.String("playbook", raw)
				return err
			},
		},
		{
			Name:    "extra_vars",
			Default: func(r *PlaybookRequest) { r.ExtraVars = map[string]any{} },
			Apply: func(raw any, r *PlaybookRequest) (err error) {
				r.ExtraVars, err = validation.AnyMap("extra_vars", raw)
				return err
			},
		},
	},
}

var kyuboCommunicationSchema = &validation.Schema[KyuboCommunicationData]{
	Name: "KyuboCommunicationData",
	Fields: []validation.Field[KyuboCommunicationData]{
		{
			Name:     "ip_communication",
			Required: true,
			Apply: func(raw any, r *KyuboCommunicationData) (err error) {
				r.IPCommunication, err = validation.NonEmptyString("ip_communication", raw)
				return err
			},
		},
		{
			Name:     "request_id",
			Required: true,
			Apply: func(raw any, r *KyuboCommunicationData) (err error) {
				r.RequestID, err = validation.NonEmptyString("request_id", raw)
				return err
			},
		},
	},
}

// ParseSSHCommandRequest needs at least one of command or playbook.
func ParseSSHCommandRequest(raw map[string]any) (*SSHCommandRequest, error) {
	req, err := sshCommandSchema.Validate(raw)
	if err != nil {
		return nil, err
	}
	if req.Command == "" && req.Playbook == "" {
		v := validation.Missing("command")
		v.Message = "command or playbook is required"
		return nil, v
	}
	return req, nil
}

func ParsePlaybookRequest(raw map[string]any) (*PlaybookRequest, error) {
	return playbookSchema.Validate(raw)
}

func ParseKyuboCommunicationData(raw map[string]any) (*KyuboCommunicationData, error) {
	return kyuboCommunicationSchema.Validate(raw)
}
