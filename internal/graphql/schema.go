package graphql

import (
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

const schemaSDL = `
type Query {
  health: Boolean!
  carriers(shopId: Int): [Carrier!]!
  selectCarriers(orderId: Int!): [Carrier!]!
  shipment(id: Int!): Shipment
  labels(shipmentId: Int!): [Label!]!
  logEntries(orderId: Int, infoPackageId: Int, name: String, limit: Int): [LogEntry!]!
  carrier(id: Int!): Carrier
  configurationEntry(carrierId: Int!, key: String!): ConfigEntry!
  typeShipments(carrierId: Int!): [TypeShipment!]!
  typeShipmentConfigurationEntry(typeShipmentId: Int!, key: String!): ConfigEntry!
  validationRule(id: Int!): ValidationRule
  infoPackage(id: Int!): InfoPackage
}

type Mutation {
  generateShipment(infoPackageId: Int!, shopId: Int): Shipment!
  deleteShipment(id: Int!): Boolean!
  markLabelPrinted(shipmentId: Int!, labelId: Int!): Boolean!
  saveCarrier(input: CarrierInput!): Carrier!
  removeCarrier(id: Int!): Boolean!
  saveTypeShipment(input: TypeShipmentInput!): TypeShipment!
  removeTypeShipment(id: Int!): Boolean!
  saveValidationRule(input: ValidationRuleInput!): ValidationRule!
  removeValidationRule(id: Int!): Boolean!
  saveInfoPackage(input: InfoPackageInput!): InfoPackage!
}

type Carrier {
  id: Int!
  name: String!
  shortName: String!
  icon: String
  active: Boolean!
  shopIds: [Int!]!
}

type Shipment {
  id: Int!
  orderId: Int!
  orderReference: String!
  shipmentNumber: String!
  infoPackageId: Int!
  carrierId: Int!
  typeShipmentId: Int!
  product: String!
  createdAt: String!
  labels: [Label!]!
}

type Label {
  id: Int!
  shipmentId: Int!
  trackerCode: String!
  type: String!
  format: String!
  printed: Boolean!
  url: String!
}

type LogEntry {
  id: Int!
  name: String!
  orderId: Int!
  infoPackageId: Int!
  carrier: String!
  error: String
  correlationId: String!
  createdAt: String!
}

type ConfigEntry {
  key: String!
  value: String!
  required: Boolean!
}

type TypeShipment {
  id: Int!
  carrierId: Int!
  name: String!
  businessCode: String!
  referenceCarrierId: Int!
  active: Boolean!
  config: [ConfigEntry!]!
}

type ValidationRule {
  id: Int!
  name: String!
  priority: Int!
  active: Boolean!
  shopId: Int
  shopGroupId: Int
  productIds: [Int!]!
  categoryIds: [Int!]!
  zoneIds: [Int!]!
  countryIds: [Int!]!
  minWeight: Float
  maxWeight: Float
  allowCarrierIds: [Int!]!
  denyCarrierIds: [Int!]!
  addCarrierIds: [Int!]!
  preferCarrierIds: [Int!]!
}

type InfoPackage {
  id: Int!
  orderId: Int!
  shopId: Int!
  referenceCarrierId: Int!
  typeShipmentId: Int
  quantity: Int!
  weight: Float!
  cashOnDelivery: String!
  return: Boolean!
}

input ConfigEntryInput {
  key: String!
  value: String!
  required: Boolean
}

"Saving with an id replaces the stored carrier."
input CarrierInput {
  id: Int
  name: String!
  shortName: String!
  icon: String
  active: Boolean!
  shopIds: [Int!]
  config: [ConfigEntryInput!]
}

input TypeShipmentInput {
  id: Int
  carrierId: Int!
  name: String!
  businessCode: String!
  referenceCarrierId: Int!
  active: Boolean!
  config: [ConfigEntryInput!]
}

input ValidationRuleInput {
  id: Int
  name: String!
  priority: Int
  active: Boolean!
  shopId: Int
  shopGroupId: Int
  productIds: [Int!]
  categoryIds: [Int!]
  zoneIds: [Int!]
  countryIds: [Int!]
  minWeight: Float
  maxWeight: Float
  allowCarrierIds: [Int!]
  denyCarrierIds: [Int!]
  addCarrierIds: [Int!]
  preferCarrierIds: [Int!]
}

input InfoPackageInput {
  id: Int
  orderId: Int!
  shopId: Int
  referenceCarrierId: Int!
  typeShipmentId: Int
  quantity: Int
  weight: Float
  length: Float
  width: Float
  height: Float
  cashOnDelivery: String
  hourFrom: String
  hourUntil: String
  return: Boolean
  rcs: String
  vsec: String
  dorig: String
}
`

var schema = gqlparser.MustLoadSchema(&ast.Source{Name: "schema.graphql", Input: schemaSDL})
