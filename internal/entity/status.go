package entity

// Status é o estágio do prospect no pipeline. Os valores são persistidos como estão.
type Status string

const (
	StatusHunted       Status = "cazado"
	StatusSpied        Status = "espiado"
	StatusQualified    Status = "analizado_exitoso"
	StatusPersuaded    Status = "persuadido"
	StatusNurture1     Status = "en_nutricion_1"
	StatusNurture2     Status = "en_nutricion_2"
	StatusColdLead     Status = "lead_frio"
	StatusDiscarded    Status = "descartado"
	StatusLowQuality   Status = "analizado_baja_calidad"
	StatusSpyDiscarded Status = "descartado_espia"
	StatusSpyAbandoned Status = "abandonado_por_espia"
	StatusHumanAlert   Status = "alerta_humana"
)

var allStatuses = []Status{
	StatusHunted, StatusSpied, StatusQualified, StatusPersuaded, StatusNurture1,
	StatusNurture2, StatusColdLead, StatusDiscarded, StatusLowQuality,
	StatusSpyDiscarded, StatusSpyAbandoned, StatusHumanAlert,
}

// Grafo de transições "para frente". alerta_humana e o reset manual para
// cazado são tratados à parte em CanTransition.
var transitions = map[Status][]Status{
	StatusHunted: {
		StatusSpied, StatusSpyDiscarded, StatusSpyAbandoned,
		StatusQualified, StatusLowQuality, StatusDiscarded,
	},
	StatusSpied:     {StatusQualified, StatusLowQuality, StatusDiscarded},
	StatusQualified: {StatusPersuaded, StatusDiscarded},
	StatusPersuaded: {StatusNurture1},
	StatusNurture1:  {StatusNurture2},
	StatusNurture2:  {StatusColdLead},
}

func (s Status) Valid() bool {
	for _, v := range allStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Terminal indica que nenhum worker automático volta a tocar no prospect.
func (s Status) Terminal() bool {
	switch s {
	case StatusDiscarded, StatusLowQuality, StatusSpyDiscarded, StatusSpyAbandoned,
		StatusColdLead, StatusHumanAlert:
		return true
	}
	return false
}

// InNurture cobre os estágios em que o drip ainda pode disparar.
func (s Status) InNurture() bool {
	return s == StatusPersuaded || s == StatusNurture1 || s == StatusNurture2
}

// CanTransition valida uma mudança automática de estágio.
func CanTransition(from, to Status) bool {
	if !from.Valid() || !to.Valid() || from == to {
		return false
	}
	if to == StatusHumanAlert {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CanReset é a única volta permitida: reset manual de operador para cazado.
func CanReset(from Status) bool {
	return from.Valid() && from != StatusHunted
}

// NextNurtureStage devolve o próximo estágio do drip e a mensagem correspondente.
func NextNurtureStage(from Status) (Status, DripKind, bool) {
	switch from {
	case StatusPersuaded:
		return StatusNurture1, DripValue, true
	case StatusNurture1:
		return StatusNurture2, DripSocialProof, true
	case StatusNurture2:
		return StatusColdLead, DripBreakup, true
	}
	return "", "", false
}

type DripKind string

const (
	DripValue       DripKind = "value"
	DripSocialProof DripKind = "social_proof"
	DripBreakup     DripKind = "breakup"
)
