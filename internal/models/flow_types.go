// Package models defines flow type definitions to avoid circular imports.
package models

// FlowType identifies which flow handler owns a conversation session.
type FlowType string

// StepType identifies an addressable point within a flow's sequence.
// Step names are scoped to their flow and persist as bare strings, so a
// handler must tolerate values it does not recognize.
type StepType string

// DataKey is a key into a session's temp data bag.
type DataKey string

// Flow type constants.
const (
	FlowTypeMainMenu         FlowType = "main_menu"
	FlowTypeRegistration     FlowType = "registration"
	FlowTypeAgreementCreate  FlowType = "agreement_create"
	FlowTypeAgreementConfirm FlowType = "agreement_confirm"
	FlowTypeOfferBrowse      FlowType = "offer_browse"
	FlowTypeOfferUpload      FlowType = "offer_upload"
	FlowTypeProductSearch    FlowType = "product_search"
	FlowTypeProductRespond   FlowType = "product_respond"
	FlowTypeFishCatchPost    FlowType = "fish_catch_post"
	FlowTypeSettings         FlowType = "settings"
)

// StepNone marks a session with no active step (fresh or back at the menu).
const StepNone StepType = ""

// Registration flow steps. Customer registrations skip the shop detail
// steps; the branch is resolved from the stored role value.
const (
	StepRegName         StepType = "NAME"
	StepRegRole         StepType = "ROLE"
	StepRegShopName     StepType = "SHOP_NAME"
	StepRegShopCategory StepType = "SHOP_CATEGORY"
	StepRegLocation     StepType = "LOCATION"
	StepRegDone         StepType = "DONE"
)

// Agreement creation flow steps.
const (
	StepAgreeDirection   StepType = "DIRECTION"
	StepAgreeAmount      StepType = "AMOUNT"
	StepAgreeName        StepType = "COUNTERPARTY_NAME"
	StepAgreePhone       StepType = "COUNTERPARTY_PHONE"
	StepAgreePurpose     StepType = "PURPOSE"
	StepAgreeDescription StepType = "DESCRIPTION"
	StepAgreeDueDate     StepType = "DUE_DATE"
	StepAgreeReview      StepType = "REVIEW"
	StepAgreeDone        StepType = "DONE"
)

// Agreement confirmation flow steps. AWAITING_CONFIRM is seeded onto the
// counterparty's session without that phone having sent a message.
const (
	StepConfirmAwaiting StepType = "AWAITING_CONFIRM"
	StepConfirmDone     StepType = "DONE"
)

// Offer browsing flow steps.
const (
	StepBrowseCategory StepType = "CATEGORY"
	StepBrowseList     StepType = "LIST"
	StepBrowseDetail   StepType = "DETAIL"
	StepBrowseDone     StepType = "DONE"
)

// Offer upload flow steps (shop owners only).
const (
	StepUploadTitle     StepType = "TITLE"
	StepUploadPrice     StepType = "PRICE"
	StepUploadPhoto     StepType = "PHOTO"
	StepUploadValidDays StepType = "VALID_DAYS"
	StepUploadReview    StepType = "REVIEW"
	StepUploadDone      StepType = "DONE"
)

// Product search flow steps.
const (
	StepSearchProduct  StepType = "PRODUCT"
	StepSearchQuantity StepType = "QUANTITY"
	StepSearchNotes    StepType = "NOTES"
	StepSearchReview   StepType = "REVIEW"
	StepSearchDone     StepType = "DONE"
)

// Product response flow steps (seeded onto matched shops).
const (
	StepRespondAwaiting StepType = "AWAITING_RESPONSE"
	StepRespondPrice    StepType = "PRICE"
	StepRespondNote     StepType = "NOTE"
	StepRespondDone     StepType = "DONE"
)

// Fish catch posting flow steps (fish sellers only).
const (
	StepCatchSpecies  StepType = "SPECIES"
	StepCatchQuantity StepType = "QUANTITY"
	StepCatchPrice    StepType = "PRICE"
	StepCatchPhoto    StepType = "PHOTO"
	StepCatchLocation StepType = "LOCATION"
	StepCatchDone     StepType = "DONE"
)

// Settings flow steps.
const (
	StepSettingsMenu          StepType = "MENU"
	StepSettingsEditName      StepType = "EDIT_NAME"
	StepSettingsEditLocation  StepType = "EDIT_LOCATION"
	StepSettingsConfirmDelete StepType = "CONFIRM_DELETE"
	StepSettingsDone          StepType = "DONE"
)

// Data key constants. Keys are scoped to one flow run; the bag is cleared
// on flow start and on completion or cancellation.
const (
	DataKeyName         DataKey = "name"
	DataKeyRole         DataKey = "role"
	DataKeyShopName     DataKey = "shop_name"
	DataKeyShopCategory DataKey = "shop_category"
	DataKeyLatitude     DataKey = "latitude"
	DataKeyLongitude    DataKey = "longitude"

	DataKeyDirection         DataKey = "direction"
	DataKeyAmount            DataKey = "amount"
	DataKeyCounterpartyName  DataKey = "counterparty_name"
	DataKeyCounterpartyPhone DataKey = "counterparty_phone"
	DataKeyPurpose           DataKey = "purpose"
	DataKeyDescription       DataKey = "description"
	DataKeyDueDate           DataKey = "due_date"

	// DataKeyConfirmAgreementID is pre-populated when a counterparty
	// session is seeded into the confirmation flow.
	DataKeyConfirmAgreementID DataKey = "confirm_agreement_id"

	DataKeyOfferCategory  DataKey = "offer_category"
	DataKeyOfferID        DataKey = "offer_id"
	DataKeyOfferTitle     DataKey = "offer_title"
	DataKeyOfferPrice     DataKey = "offer_price"
	DataKeyOfferPhotoURL  DataKey = "offer_photo_url"
	DataKeyOfferValidDays DataKey = "offer_valid_days"

	DataKeyProduct  DataKey = "product"
	DataKeyQuantity DataKey = "quantity"
	DataKeyNotes    DataKey = "notes"

	// DataKeyRespondRequestID is pre-populated when a matched shop's
	// session is seeded into the response flow.
	DataKeyRespondRequestID DataKey = "respond_request_id"
	DataKeyRespondPrice     DataKey = "respond_price"

	DataKeySpecies       DataKey = "species"
	DataKeyCatchPhotoURL DataKey = "catch_photo_url"
)
