package ledger

const (
	methodAddProduct  = "addProduct"
	methodGetProduct  = "getProduct"
	eventProductAdded = "ProductAdded"
)

// registryABI is the interface of the deployed product registry contract.
const registryABI = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": false, "internalType": "uint256", "name": "productId", "type": "uint256"},
      {"indexed": false, "internalType": "string", "name": "name", "type": "string"},
      {"indexed": false, "internalType": "address", "name": "owner", "type": "address"}
    ],
    "name": "ProductAdded",
    "type": "event"
  },
  {
    "inputs": [
      {"internalType": "string", "name": "_name", "type": "string"},
      {"internalType": "string", "name": "_productionDate", "type": "string"},
      {"internalType": "string", "name": "_expiryDate", "type": "string"},
      {"internalType": "string", "name": "_medicalInfo", "type": "string"}
    ],
    "name": "addProduct",
    "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "uint256", "name": "_productId", "type": "uint256"}],
    "name": "getProduct",
    "outputs": [
      {"internalType": "string", "name": "name", "type": "string"},
      {"internalType": "string", "name": "productionDate", "type": "string"},
      {"internalType": "string", "name": "expiryDate", "type": "string"},
      {"internalType": "string", "name": "medicalInfo", "type": "string"},
      {"internalType": "address", "name": "owner", "type": "address"}
    ],
    "stateMutability": "view",
    "type": "function"
  }
]`
