package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// CadenceRule is one row of the cadence table. Days is signed: negative
// means before the due date, positive after.
type CadenceRule struct {
	Days     int    `mapstructure:"days"`
	Stage    string `mapstructure:"stage"`
	Priority string `mapstructure:"priority"`
}

// CadenceConfig is the overridable cadence table plus the message template
// for each stage. Templates are plain text with {placeholder} substitution
// only; no control flow.
type CadenceConfig struct {
	Rules     []CadenceRule     `mapstructure:"rules"`
	Templates map[string]string `mapstructure:"templates"`
}

const (
	templateReminder = `Olá {primeiro_nome}! 😊

Tudo bem? Aqui é da *LC Baterias*.

Passando para lembrar que o boleto da *NF {nf}* vence em *{vencimento}* (daqui a 3 dias).

💰 *Valor:* {valor}

O boleto em PDF será enviado logo abaixo para facilitar o pagamento! ⬇️

Qualquer dúvida, estamos à disposição!`

	templateDueToday = `Olá {primeiro_nome}! 😊

Passando para avisar que o boleto da *NF {nf}* vence *hoje*.

💰 *Valor:* {valor}

📄 Segue o boleto em PDF logo abaixo para facilitar o pagamento.

_Caso já tenha efetuado o pagamento, por favor desconsidere esta mensagem._

Tenha um ótimo dia!`

	templateOverdue = `Olá {primeiro_nome},

Identificamos que o boleto da *NF {nf}*, com vencimento em *{vencimento}*, ainda consta como pendente em nosso sistema.

💰 *Valor:* {valor}

Por gentileza, solicitamos a regularização o mais breve possível.

📄 Segue o boleto atualizado em PDF logo abaixo.

_Caso já tenha efetuado o pagamento, por favor nos envie o comprovante._

Estamos à disposição para qualquer esclarecimento!`

	templateNotice = `Prezado(a) {nome},

⚠️ *AVISO IMPORTANTE*

O boleto referente à *NF {nf}*, vencido em *{vencimento}*, permanece em aberto há 5 dias.

💰 *Valor:* {valor}

⚠️ Informamos que, conforme nossa política comercial, o título será encaminhado para *protesto em cartório* caso o pagamento não seja identificado até o final do dia de hoje.

📄 Segue o boleto em PDF logo abaixo.

🔹 *Caso já tenha efetuado o pagamento:*
Por favor, nos envie o comprovante com urgência.

Aguardamos retorno urgente.

Atenciosamente,
*LC Baterias*`
)

func DefaultCadenceConfig() CadenceConfig {
	return CadenceConfig{
		Rules: []CadenceRule{
			{Days: -3, Stage: "reminder", Priority: "low"},
			{Days: 0, Stage: "due_today", Priority: "medium"},
			{Days: 3, Stage: "overdue", Priority: "high"},
			{Days: 5, Stage: "notice", Priority: "urgent"},
		},
		Templates: map[string]string{
			"reminder":  templateReminder,
			"due_today": templateDueToday,
			"overdue":   templateOverdue,
			"notice":    templateNotice,
		},
	}
}

type CadenceHolder struct {
	current atomic.Value // holds CadenceConfig
}

// NewCadenceHolder reads cadence.yml, falls back to the built-in table when
// no file exists, validates eagerly, and hot-reloads changes.
func NewCadenceHolder() (*CadenceHolder, error) {
	v := viper.New()

	v.SetConfigName("cadence")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/cobranca/config") // Volume-mounted config
	v.AddConfigPath("/etc/cobranca")            // System config
	v.AddConfigPath(".")                        // Current directory (dev mode)

	v.SetEnvPrefix("COBRANCA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
	}

	cfg := DefaultCadenceConfig()
	if fileFound {
		if err := v.UnmarshalKey("cadence", &cfg); err != nil {
			return nil, err
		}
		cfg = mergeTemplates(cfg)
	}
	if err := validateCadenceConfig(cfg); err != nil {
		return nil, err
	}

	holder := &CadenceHolder{}
	holder.current.Store(cfg)

	if fileFound {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			updated := DefaultCadenceConfig()
			if err := v.UnmarshalKey("cadence", &updated); err != nil {
				log.Printf("[cadence-config] reload failed: %v", err)
				return
			}
			updated = mergeTemplates(updated)
			if err := validateCadenceConfig(updated); err != nil {
				log.Printf("[cadence-config] invalid config ignored: %v", err)
				return
			}
			holder.current.Store(updated)
			log.Printf("[cadence-config] reloaded from %s", e.Name)
		})
	}

	return holder, nil
}

// StaticCadenceHolder wraps a fixed config with no file watching. Meant
// for tests and one-shot tooling.
func StaticCadenceHolder(cfg CadenceConfig) *CadenceHolder {
	h := &CadenceHolder{}
	h.current.Store(cfg)
	return h
}

func (h *CadenceHolder) Get() CadenceConfig {
	return h.current.Load().(CadenceConfig)
}

// mergeTemplates fills stages the override file left out with the built-in
// template, so a file that only tweaks one message stays valid.
func mergeTemplates(cfg CadenceConfig) CadenceConfig {
	defaults := DefaultCadenceConfig()
	if len(cfg.Rules) == 0 {
		cfg.Rules = defaults.Rules
	}
	if cfg.Templates == nil {
		cfg.Templates = map[string]string{}
	}
	for stage, tpl := range defaults.Templates {
		if _, ok := cfg.Templates[stage]; !ok {
			cfg.Templates[stage] = tpl
		}
	}
	return cfg
}

func validateCadenceConfig(cfg CadenceConfig) error {
	if len(cfg.Rules) == 0 {
		return errors.New("cadence.rules cannot be empty")
	}
	seen := map[int]string{}
	for _, rule := range cfg.Rules {
		if strings.TrimSpace(rule.Stage) == "" {
			return fmt.Errorf("cadence rule for day %d is missing a stage", rule.Days)
		}
		if prev, dup := seen[rule.Days]; dup {
			return fmt.Errorf("cadence rules %q and %q share day offset %d", prev, rule.Stage, rule.Days)
		}
		seen[rule.Days] = rule.Stage
		if tpl, ok := cfg.Templates[rule.Stage]; !ok || strings.TrimSpace(tpl) == "" {
			return fmt.Errorf("cadence stage %q has no message template", rule.Stage)
		}
	}
	return nil
}
