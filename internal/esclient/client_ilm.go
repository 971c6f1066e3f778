package esclient

import (
	"bytes"
	"encoding/json"
	"context"
	"fmt"
)

// wireILMPolicy is the on-the-wire GET/PUT _ilm/policy shape, grounded on
// the terraform-provider-elasticstack reference's models.Policy shape.
type wireILMPolicy struct {
	Policy struct {
		Phases   map[string]wireILMPhase `json:"phases"`
		Metadata map[string]interface{}  `json:"_meta,omitempty"`
	} `json:"policy"`
}

type wireILMPhase struct {
	MinAge  string                            `json:"min_age"`
	Actions map[string]map[string]interface{} `json:"actions"`
}

func (c *Client) GetLifecycle(ctx context.Context, name string) (*ILMPolicy, error) {
	res, err := c.es.ILM.GetLifecycle(c.es.ILM.GetLifecycle.WithContext(ctx), c.es.ILM.GetLifecycle.WithPolicy(name))
	if err != nil {
		return nil, err
	}
	var body map[string]wireILMPolicy
	if err := decodeResponse(res, &body); err != nil {
		return nil, err
	}
	wire, ok := body[name]
	if !ok {
		return nil, fmt.Errorf("ilm policy %q not found", name)
	}
	return toILMPolicy(name, wire), nil
}

func (c *Client) ListLifecycles(ctx context.Context) ([]ILMPolicy, error) {
	res, err := c.es.ILM.GetLifecycle(c.es.ILM.GetLifecycle.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	var body map[string]wireILMPolicy
	if err := decodeResponse(res, &body); err != nil {
		return nil, err
	}
	out := make([]ILMPolicy, 0, len(body))
	for name, wire := range body {
		out = append(out, *toILMPolicy(name, wire))
	}
	return out, nil
}

func (c *Client) PutLifecycle(ctx context.Context, policy ILMPolicy) error {
	wire := wireILMPolicy{}
	wire.Policy.Metadata = policy.Metadata
	wire.Policy.Phases = make(map[string]wireILMPhase, len(policy.Phases))
	for name, phase := range policy.Phases {
		wire.Policy.Phases[name] = wireILMPhase{MinAge: phase.MinAge, Actions: phase.Actions}
	}
	payload, err := json.Marshal(wire)
	if err != nil {
		return err
	}
	res, err := c.es.ILM.PutLifecycle(policy.Name,
		c.es.ILM.PutLifecycle.WithContext(ctx),
		c.es.ILM.PutLifecycle.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return err
	}
	return decodeResponse(res, nil)
}

func (c *Client) DeleteLifecycle(ctx context.Context, name string) error {
	res, err := c.es.ILM.DeleteLifecycle(name, c.es.ILM.DeleteLifecycle.WithContext(ctx))
	if err != nil {
		return err
	}
	return decodeResponse(res, nil)
}

func toILMPolicy(name string, wire wireILMPolicy) *ILMPolicy {
	p := &ILMPolicy{Name: name, Metadata: wire.Policy.Metadata, Phases: map[string]ILMPhase{}}
	for phaseName, phase := range wire.Policy.Phases {
		p.Phases[phaseName] = ILMPhase{MinAge: phase.MinAge, Actions: phase.Actions}
	}
	return p
}

// GetTemplateILMRefs inspects every composable index template's
// index.lifecycle.name setting, used by rotate's step 4.
func (c *Client) GetTemplateILMRefs(ctx context.Context) (map[string]string, error) {
	res, err := c.es.Indices.GetIndexTemplate(c.es.Indices.GetIndexTemplate.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	var body struct {
		IndexTemplates []struct {
			Name          string `json:"name"`
			IndexTemplate struct {
				Template struct {
					Settings struct {
						Index struct {
							Lifecycle struct {
								Name string `json:"name"`
							} `json:"lifecycle"`
						} `json:"index"`
					} `json:"settings"`
				} `json:"template"`
			} `json:"index_template"`
		} `json:"index_templates"`
	}
	if err := decodeResponse(res, &body); err != nil {
		return nil, err
	}
	out := map[string]string{}
	for _, tpl := range body.IndexTemplates {
		name := tpl.IndexTemplate.Template.Settings.Index.Lifecycle.Name
		if name != "" {
			out[tpl.Name] = name
		}
	}
	return out, nil
}

func (c *Client) SetTemplateILMPolicy(ctx context.Context, templateName, policyName string) error {
	payload, err := json.Marshal(map[string]interface{}{
		"template": map[string]interface{}{
			"settings": map[string]interface{}{
				"index.lifecycle.name": policyName,
			},
		},
	})
	if err != nil {
		return err
	}
	res, err := c.es.Indices.PutIndexTemplate(templateName,
		bytes.NewReader(payload),
		c.es.Indices.PutIndexTemplate.WithContext(ctx),
	)
	if err != nil {
		return err
	}
	return decodeResponse(res, nil)
}
