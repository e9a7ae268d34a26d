package authz

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Code identifies one protected feature or action. The set is closed: every
// call site references one of the constants below, and the seeder keeps the
// capabilities table aligned with this list.
type Code string

// Capability categories group codes per functional module.
type Category string

const (
	CategoryCaisse       Category = "MODULE_CAISSE"
	CategoryInfirmier    Category = "MODULE_INFIRMIER"
	CategoryConsultation Category = "MODULE_CONSULTATION"
	CategoryLabo         Category = "MODULE_LABO"
	CategoryHospi        Category = "MODULE_HOSPI"
	CategoryStock        Category = "MODULE_STOCK"
	CategoryDocuments    Category = "MODULE_DOCUMENTS"
	CategoryPatients     Category = "MODULE_PATIENTS"
	CategoryBilling      Category = "MODULE_FACTURATION"
	CategoryVentes       Category = "MODULE_VENTES"
	CategoryRecouvrement Category = "MODULE_RECOUVREMENT"
	CategoryCloture      Category = "MODULE_CLOTURE"
	CategoryParametres   Category = "MODULE_PARAMETRES"
)

const (
	CaisseView        Code = "CAISSE_VIEW"
	CaisseAddItem     Code = "CAISSE_ADD_ITEM"
	CaisseDeleteRow   Code = "CAISSE_DEL_ROW"
	CaisseValidate    Code = "CAISSE_VALIDATE"
	CaisseToggleAssur Code = "CAISSE_TOGGLE_ASSUR"
	CaisseForcePrice  Code = "CAISSE_FORCE_PRICE"
	CaissePrintRec    Code = "CAISSE_PRINT_REC"

	InfirmierView        Code = "INFIRMIER_VIEW"
	InfirmierActes       Code = "INFIRMIER_ACTES"
	InfirmierKitsManage  Code = "INFIRMIER_KITS_MANAGE"
	InfirmierKitsConsume Code = "INFIRMIER_KITS_CONSUME"

	ConsultView       Code = "CONSULT_VIEW"
	ConsultCreate     Code = "CONSULT_CREATE"
	ConsultHistory    Code = "CONSULT_HISTORY"
	ConsultConstantes Code = "CONSULT_CONSTANTES"

	LaboView     Code = "LABO_VIEW"
	LaboResults  Code = "LABO_RESULTS"
	LaboValidate Code = "LABO_VALIDATE"
	LaboPrint    Code = "LABO_PRINT"

	HospiView      Code = "HOSPI_VIEW"
	HospiAdmit     Code = "HOSPI_ADMIT"
	HospiDischarge Code = "HOSPI_DISCHARGE"
	HospiPlanning  Code = "HOSPI_PLANNING"

	StockView      Code = "STOCK_VIEW"
	StockEntry     Code = "STOCK_ENTRY"
	StockExit      Code = "STOCK_EXIT"
	StockInventory Code = "STOCK_INVENTORY"
	StockSeePrices Code = "STOCK_SEE_PRICES"
	StockRayons    Code = "STOCK_RAYONS"

	DocsView  Code = "DOCS_VIEW"
	DocsStats Code = "DOCS_STATS"

	PatientsView Code = "PATIENTS_VIEW"
	PatientsAdd  Code = "PATIENTS_ADD"
	PatientsEdit Code = "PATIENTS_EDIT"

	BillingView Code = "BILLING_VIEW"
	BillingNew  Code = "BILLING_NEW"

	VentesView   Code = "VENTES_VIEW"
	VentesEdit   Code = "VENTES_EDIT"
	VentesDelete Code = "VENTES_DELETE"

	RecouvrementView    Code = "RECOUVREMENT_VIEW"
	RecouvrementCollect Code = "RECOUVREMENT_COLLECT"
	RecouvrementHistory Code = "RECOUVREMENT_HISTORY"

	ClotureView    Code = "CLOTURE_VIEW"
	ClotureRun     Code = "CLOTURE_RUN"
	ClotureReopen  Code = "CLOTURE_REOPEN"
	ClotureCorrect Code = "CLOTURE_CORRECT"

	ParamView  Code = "PARAM_VIEW"
	ParamUsers Code = "PARAM_USERS"
	ParamRoles Code = "PARAM_ROLES"
	ParamDB    Code = "PARAM_DB"
)

// Capability describes one catalog entry as stored in the database.
type Capability struct {
	ID        int64
	Code      Code
	Label     string
	Category  Category
	Icon      string
	SortOrder int
	IsActive  bool
}

// Definition seeds one capability row.
type Definition struct {
	Code      Code
	Label     string
	Category  Category
	Icon      string
	SortOrder int
}

var labelCaser = cases.Title(language.French)

func def(code Code, label string, category Category, icon string, order int) Definition {
	return Definition{
		Code:      code,
		Label:     labelCaser.String(label),
		Category:  category,
		Icon:      icon,
		SortOrder: order,
	}
}

// Catalog returns the full capability set in seeding order.
func Catalog() []Definition {
	return []Definition{
		def(CaisseView, "vue principale", CategoryCaisse, "cash", 10),
		def(CaisseAddItem, "ajouter au panier", CategoryCaisse, "plus", 20),
		def(CaisseDeleteRow, "supprimer ligne panier", CategoryCaisse, "trash", 30),
		def(CaisseValidate, "valider encaissement", CategoryCaisse, "check", 40),
		def(CaisseToggleAssur, "basculer assurance/cash", CategoryCaisse, "shield", 50),
		def(CaisseForcePrice, "forcer prix", CategoryCaisse, "edit", 60),
		def(CaissePrintRec, "réimprimer reçu", CategoryCaisse, "printer", 70),

		def(InfirmierView, "vue principale", CategoryInfirmier, "syringe", 10),
		def(InfirmierActes, "gestion actes/soins", CategoryInfirmier, "bandage", 20),
		def(InfirmierKitsManage, "gestion des kits", CategoryInfirmier, "box", 30),
		def(InfirmierKitsConsume, "sortie de stock/kit", CategoryInfirmier, "outbox", 40),

		def(ConsultView, "vue consultations", CategoryConsultation, "stethoscope", 10),
		def(ConsultCreate, "nouvelle consultation", CategoryConsultation, "plus", 20),
		def(ConsultHistory, "voir historique dossier", CategoryConsultation, "scroll", 30),
		def(ConsultConstantes, "saisie constantes", CategoryConsultation, "thermometer", 40),

		def(LaboView, "vue laboratoire", CategoryLabo, "microscope", 10),
		def(LaboResults, "saisir résultats", CategoryLabo, "testtube", 20),
		def(LaboValidate, "valider résultats", CategoryLabo, "check", 30),
		def(LaboPrint, "imprimer résultats", CategoryLabo, "printer", 40),

		def(HospiView, "vue hospitalisation", CategoryHospi, "hospital", 10),
		def(HospiAdmit, "nouvelle admission", CategoryHospi, "inbox", 20),
		def(HospiDischarge, "sortie patient", CategoryHospi, "outbox", 30),
		def(HospiPlanning, "gestion lits/planning", CategoryHospi, "bed", 40),

		def(StockView, "vue stock global", CategoryStock, "box", 10),
		def(StockEntry, "faire une entrée", CategoryStock, "inbox", 20),
		def(StockExit, "faire une sortie", CategoryStock, "outbox", 30),
		def(StockInventory, "faire inventaire", CategoryStock, "clipboard", 40),
		def(StockSeePrices, "voir prix achat/marge", CategoryStock, "eye", 50),
		def(StockRayons, "gérer rayons", CategoryStock, "cabinet", 60),

		def(DocsView, "vue documents", CategoryDocuments, "folder", 10),
		def(DocsStats, "voir statistiques", CategoryDocuments, "chart", 20),

		def(PatientsView, "vue patients", CategoryPatients, "people", 10),
		def(PatientsAdd, "créer patient", CategoryPatients, "plus", 20),
		def(PatientsEdit, "modifier patient", CategoryPatients, "edit", 30),

		def(BillingView, "factures & devis", CategoryBilling, "document", 10),
		def(BillingNew, "nouvelle facture", CategoryBilling, "plus", 20),

		def(VentesView, "historique ventes", CategoryVentes, "scroll", 10),
		def(VentesEdit, "modifier/recharger vente", CategoryVentes, "edit", 20),
		def(VentesDelete, "annuler/supprimer vente", CategoryVentes, "trash", 30),

		def(RecouvrementView, "vue recouvrement", CategoryRecouvrement, "coins", 10),
		def(RecouvrementCollect, "encaisser dette", CategoryRecouvrement, "cash", 20),
		def(RecouvrementHistory, "voir historique", CategoryRecouvrement, "clock", 30),

		def(ClotureView, "vue clôture journée", CategoryCloture, "lock", 10),
		def(ClotureRun, "clôturer la journée", CategoryCloture, "lock", 20),
		def(ClotureReopen, "dé-clôturer une date", CategoryCloture, "unlock", 30),
		def(ClotureCorrect, "corriger erreurs de date", CategoryCloture, "edit", 40),

		def(ParamView, "vue paramètres", CategoryParametres, "gear", 10),
		def(ParamUsers, "gestion utilisateurs", CategoryParametres, "person", 20),
		def(ParamRoles, "gestion rôles", CategoryParametres, "key", 30),
		def(ParamDB, "config bdd", CategoryParametres, "database", 40),
	}
}

// Known reports whether code belongs to the catalog.
func Known(code Code) bool {
	_, ok := catalogIndex[code]
	return ok
}

var catalogIndex = func() map[Code]Definition {
	idx := make(map[Code]Definition)
	for _, d := range Catalog() {
		idx[d.Code] = d
	}
	return idx
}()
